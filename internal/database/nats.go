package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// TaskStreamName is the JetStream stream backing scheduled task delivery.
const TaskStreamName = "ISMS_TASKS"

// TaskSubjectPrefix scopes every scheduled task subject.
const TaskSubjectPrefix = "isms.tasks"

// ConnectNATS dials the NATS server and provisions the scheduled task stream.
func ConnectNATS(url string) (*nats.Conn, nats.JetStreamContext, error) {
	if url == "" {
		return nil, nil, fmt.Errorf("nats url must not be empty")
	}

	conn, err := nats.Connect(url, nats.Name("isms-api"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to initialise jetstream: %w", err)
	}

	_, err = js.StreamInfo(TaskStreamName)
	if err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      TaskStreamName,
			Subjects:  []string{TaskSubjectPrefix + ".>"},
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to provision task stream: %w", err)
		}
	}

	return conn, js, nil
}
