package queue

import (
	"testing"
	"time"
)

func validEvent() OrderEvent {
	return OrderEvent{
		EventID:    "evt-1",
		Type:       EventOrderCreated,
		OrderID:    42,
		OrderNo:    "ORD-1700000000000-ABCDEF123",
		UserID:     7,
		Amount:     450000,
		Status:     "pending",
		OccurredAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestOrderEventValidate(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := map[string]func(*OrderEvent){
		"missing event_id": func(e *OrderEvent) { e.EventID = "" },
		"missing type":     func(e *OrderEvent) { e.Type = "" },
		"missing order_id": func(e *OrderEvent) { e.OrderID = 0 },
		"missing order_no": func(e *OrderEvent) { e.OrderNo = "" },
	}
	for name, mutate := range cases {
		ev := validEvent()
		mutate(&ev)
		if err := ev.Validate(); err == nil {
			t.Errorf("%s: want error, got nil", name)
		}
	}
}

func TestParseOrderEventRoundTrip(t *testing.T) {
	want := validEvent()

	// Mirror the field map the outbox writes to the stream.
	values := map[string]interface{}{
		"event_id":    want.EventID,
		"type":        want.Type,
		"order_id":    "42",
		"order_no":    want.OrderNo,
		"user_id":     "7",
		"amount":      "450000",
		"status":      want.Status,
		"occurred_at": "1700000000",
	}

	got, err := parseOrderEvent(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Errorf("parsed event = %+v, want %+v", got, want)
	}
}

func TestParseOrderEventRejectsDirtyEntries(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"missing field": {
			"event_id": "evt-1",
			"type":     EventOrderCreated,
		},
		"bad order_id": {
			"event_id":    "evt-1",
			"type":        EventOrderCreated,
			"order_id":    "not-a-number",
			"order_no":    "ORD-1",
			"user_id":     "7",
			"amount":      "1",
			"status":      "pending",
			"occurred_at": "1700000000",
		},
		"zero order_id fails validation": {
			"event_id":    "evt-1",
			"type":        EventOrderCreated,
			"order_id":    "0",
			"order_no":    "ORD-1",
			"user_id":     "7",
			"amount":      "1",
			"status":      "pending",
			"occurred_at": "1700000000",
		},
	}
	for name, values := range cases {
		if _, err := parseOrderEvent(values); err == nil {
			t.Errorf("%s: want error, got nil", name)
		}
	}
}
