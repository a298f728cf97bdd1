package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestFilter_Matches(t *testing.T) {
	e := Event{Table: TableSubmissions, StudentID: 4, EventID: 0}
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty filter", filter: Filter{}, want: true},
		{name: "same table", filter: Filter{Table: TableSubmissions}, want: true},
		{name: "other table", filter: Filter{Table: TableApplications}, want: false},
		{name: "same student", filter: Filter{Table: TableSubmissions, StudentID: 4}, want: true},
		{name: "other student", filter: Filter{StudentID: 5}, want: false},
		{name: "event filter on event-less change", filter: Filter{EventID: 2}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
}

func TestFilter_MatchesClass(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		classes []string
		want    bool
	}{
		{name: "open to every class", filter: Filter{Table: TableEvents, Class: "TYIT"}, want: true},
		{name: "class listed", filter: Filter{Table: TableEvents, Class: "TYIT"}, classes: []string{"SYIT", "TYIT"}, want: true},
		{name: "class not listed", filter: Filter{Table: TableEvents, Class: "SYCS"}, classes: []string{"SYIT", "TYIT"}, want: false},
		{name: "no class on filter", filter: Filter{Table: TableEvents}, classes: []string{"TYIT"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{Table: TableEvents, Key: "1", EventID: 1, Classes: tt.classes}
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
}

func TestHub_DeliversMatchingEvents(t *testing.T) {
	hub := startHub(t)
	mine := hub.Subscribe(Filter{Table: TableSubmissions, StudentID: 1})
	all := hub.Subscribe(Filter{})
	defer mine.Close()
	defer all.Close()

	ctx := context.Background()
	hub.Publish(ctx, Event{Table: TableSubmissions, Op: OpUpdate, StudentID: 2, Key: "2/offer_letter"})
	hub.Publish(ctx, Event{Table: TableSubmissions, Op: OpInsert, StudentID: 1, Key: "1/offer_letter", NewStatus: "submitted"})

	got := receive(t, mine)
	assert.Equal(t, "1/offer_letter", got.Key)
	assert.Equal(t, "submitted", got.NewStatus)
	assert.False(t, got.At.IsZero())

	assert.Equal(t, "2/offer_letter", receive(t, all).Key)
	assert.Equal(t, "1/offer_letter", receive(t, all).Key)
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := startHub(t)
	slow := hub.Subscribe(Filter{Table: TableNotifications})

	ctx := context.Background()
	for i := 0; i < subscriptionBuffer+1; i++ {
		hub.Publish(ctx, Event{Table: TableNotifications, Op: OpInsert})
	}

	assert.Eventually(t, func() bool { return hub.SubscriberCount(TableNotifications) == 0 }, time.Second, 10*time.Millisecond)

	drained := 0
	for range slow.C {
		drained++
	}
	assert.Equal(t, subscriptionBuffer, drained)
	slow.Close()
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := startHub(t)
	sub := hub.Subscribe(Filter{Table: TableApprovals})
	require.Eventually(t, func() bool { return hub.SubscriberCount(TableApprovals) == 1 }, time.Second, 10*time.Millisecond)

	sub.Close()
	sub.Close()
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount(TableApprovals))
}

func TestTable_Valid(t *testing.T) {
	assert.True(t, TableApplications.Valid())
	assert.False(t, Table("chat").Valid())
}
