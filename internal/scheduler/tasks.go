package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOfferCreate = "offers.create"

const TaskAppointmentReminder = "appointments.reminder"

type OfferCreatePayload struct {
	AppointmentID string `json:"appointmentId"`
}

type AppointmentReminderPayload struct {
	AppointmentID string `json:"appointmentId"`
}

func NewOfferCreateTask(payload OfferCreatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOfferCreate, data), nil
}

func ParseOfferCreatePayload(task *asynq.Task) (OfferCreatePayload, error) {
	var payload OfferCreatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OfferCreatePayload{}, err
	}
	return payload, nil
}

func NewAppointmentReminderTask(payload AppointmentReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAppointmentReminder, data), nil
}

func ParseAppointmentReminderPayload(task *asynq.Task) (AppointmentReminderPayload, error) {
	var payload AppointmentReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AppointmentReminderPayload{}, err
	}
	return payload, nil
}
