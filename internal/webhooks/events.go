package webhooks

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// Subscription types accepted from the CRM.
const (
	SubContactPropertyChange = "contact.propertyChange"
	SubCompanyPropertyChange = "company.propertyChange"
	SubContactCreation       = "contact.creation"
	SubDealPropertyChange    = "deal.propertyChange"
)

// Event is one decoded CRM webhook event.
type Event interface {
	EventID() string
	Subscription() string
}

// Base carries the fields shared by every event.
type Base struct {
	ID         int64 `json:"eventId"`
	ObjectID   int64 `json:"objectId"`
	OccurredAt int64 `json:"occurredAt"`
}

// EventID implements Event.
func (b Base) EventID() string { return strconv.FormatInt(b.ID, 10) }

// PropertyChange is a single property update.
type PropertyChange struct {
	Base
	Property string `json:"propertyName"`
	Value    string `json:"propertyValue"`
}

// ContactPropertyChange reports an edited contact property.
type ContactPropertyChange struct{ PropertyChange }

// Subscription implements Event.
func (ContactPropertyChange) Subscription() string { return SubContactPropertyChange }

// CompanyPropertyChange reports an edited company property.
type CompanyPropertyChange struct{ PropertyChange }

// Subscription implements Event.
func (CompanyPropertyChange) Subscription() string { return SubCompanyPropertyChange }

// DealPropertyChange reports an edited deal property.
type DealPropertyChange struct{ PropertyChange }

// Subscription implements Event.
func (DealPropertyChange) Subscription() string { return SubDealPropertyChange }

// ContactCreation reports a newly created contact. It carries no property.
type ContactCreation struct{ Base }

// Subscription implements Event.
func (ContactCreation) Subscription() string { return SubContactCreation }

type rawEvent struct {
	EventID          int64  `json:"eventId" validate:"required,gt=0"`
	SubscriptionType string `json:"subscriptionType" validate:"required"`
	ObjectID         int64  `json:"objectId" validate:"required,gt=0"`
	PropertyName     string `json:"propertyName"`
	PropertyValue    string `json:"propertyValue"`
	OccurredAt       int64  `json:"occurredAt"`
}

var eventValidator = validator.New()

// DecodeEvents parses a webhook batch. Any malformed or unknown event
// rejects the whole batch.
func DecodeEvents(body []byte) ([]Event, error) {
	var raws []rawEvent
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: events must be a JSON array: %v", httpx.ErrValidation, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: no events", httpx.ErrValidation)
	}
	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		if err := eventValidator.Struct(raw); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", httpx.ErrValidation, i, err)
		}
		base := Base{ID: raw.EventID, ObjectID: raw.ObjectID, OccurredAt: raw.OccurredAt}
		change := PropertyChange{Base: base, Property: raw.PropertyName, Value: raw.PropertyValue}
		switch raw.SubscriptionType {
		case SubContactCreation:
			events = append(events, ContactCreation{Base: base})
			continue
		case SubContactPropertyChange, SubCompanyPropertyChange, SubDealPropertyChange:
			if raw.PropertyName == "" {
				return nil, fmt.Errorf("%w: event %d: propertyName required", httpx.ErrValidation, i)
			}
		default:
			return nil, fmt.Errorf("%w: event %d: unsupported subscription %q", httpx.ErrValidation, i, raw.SubscriptionType)
		}
		switch raw.SubscriptionType {
		case SubContactPropertyChange:
			events = append(events, ContactPropertyChange{change})
		case SubCompanyPropertyChange:
			events = append(events, CompanyPropertyChange{change})
		case SubDealPropertyChange:
			events = append(events, DealPropertyChange{change})
		}
	}
	return events, nil
}
