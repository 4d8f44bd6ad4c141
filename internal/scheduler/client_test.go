package scheduler

import (
	"context"
	"testing"
	"time"

	"taller_portal_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func testClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()

	srv := miniredis.RunT(t)
	cfg := &config.Config{
		RedisURL:       "redis://" + srv.Addr(),
		AsynqQueueName: "portal",
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	t.Cleanup(func() { inspector.Close() })

	return client, inspector
}

func TestEnqueueOfferCreate(t *testing.T) {
	client, inspector := testClient(t)
	apptID := uuid.New()

	if err := client.EnqueueOfferCreate(context.Background(), apptID); err != nil {
		t.Fatalf("EnqueueOfferCreate: %v", err)
	}

	tasks, err := inspector.ListPendingTasks("portal")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskOfferCreate {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskOfferCreate)
	}
	if tasks[0].MaxRetry != 0 {
		t.Errorf("MaxRetry = %d, want 0: offer failures are terminal until an operator retries", tasks[0].MaxRetry)
	}

	payload, err := ParseOfferCreatePayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("ParseOfferCreatePayload: %v", err)
	}
	if payload.AppointmentID != apptID.String() {
		t.Errorf("AppointmentID = %q, want %q", payload.AppointmentID, apptID)
	}
}

func TestScheduleAppointmentReminder(t *testing.T) {
	client, inspector := testClient(t)
	apptID := uuid.New()
	runAt := time.Now().Add(2 * time.Hour)

	if err := client.ScheduleAppointmentReminder(context.Background(), apptID, runAt); err != nil {
		t.Fatalf("ScheduleAppointmentReminder: %v", err)
	}

	tasks, err := inspector.ListScheduledTasks("portal")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskAppointmentReminder {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskAppointmentReminder)
	}
}
