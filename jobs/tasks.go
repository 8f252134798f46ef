package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/storebridge/storebridge/internal/threedcart"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries order creation ahead of scheduled work.
	QueueCritical = "critical"

	// TaskTypeSendEmail is the task type for sending notification emails.
	TaskTypeSendEmail = "mail:send"
	// TaskOrderCreate creates the ERP sales order for a commerce order.
	TaskOrderCreate = "order:create"
	// TaskInventorySync copies ERP stock levels to the commerce catalog.
	TaskInventorySync = "inventory:sync"
	// TaskOrderStatusSweep reconciles recent Processing orders.
	TaskOrderStatusSweep = "orders:status-sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// OrderCreatePayload identifies the order; Order is the webhook body when
// one was received.
type OrderCreatePayload struct {
	OrderID int64             `json:"order_id"`
	Order   *threedcart.Order `json:"order,omitempty"`
}

// NewOrderCreateTask constructs an order creation task. The task id makes
// a second enqueue of the same pending order a conflict.
func NewOrderCreateTask(payload OrderCreatePayload, maxRetry int) (*asynq.Task, error) {
	if payload.OrderID <= 0 {
		return nil, fmt.Errorf("jobs: order id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderCreate, data,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(maxRetry),
		asynq.TaskID(orderCreateTaskID(payload.OrderID)),
	), nil
}

func orderCreateTaskID(orderID int64) string {
	return TaskOrderCreate + ":" + strconv.FormatInt(orderID, 10)
}

// InventorySyncPayload pages through the catalog.
type InventorySyncPayload struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewInventorySyncTask constructs an inventory sync task.
func NewInventorySyncTask(limit, offset int) (*asynq.Task, error) {
	data, err := json.Marshal(InventorySyncPayload{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventorySync, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// StatusSweepPayload selects the trailing window in days.
type StatusSweepPayload struct {
	Days int `json:"days"`
}

// NewStatusSweepTask constructs a status sweep task.
func NewStatusSweepTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(StatusSweepPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusSweep, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
