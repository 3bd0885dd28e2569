package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusFiltersByCase(t *testing.T) {
	bus := NewMemoryBus()
	casoA := uuid.New()
	casoB := uuid.New()

	var gotA, gotAll []CaseEvent
	bus.Subscribe(casoA, func(ev CaseEvent) { gotA = append(gotA, ev) })
	bus.Subscribe(uuid.Nil, func(ev CaseEvent) { gotAll = append(gotAll, ev) })

	require.NoError(t, bus.Publish(context.Background(), CaseEvent{CasoID: casoA, Tipo: EventIntentoIniciado}))
	require.NoError(t, bus.Publish(context.Background(), CaseEvent{CasoID: casoB, Tipo: EventIntentoFinalizado}))

	require.Len(t, gotA, 1)
	assert.Equal(t, casoA, gotA[0].CasoID)
	assert.Len(t, gotAll, 2)
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()
	caso := uuid.New()

	var got int
	unsubscribe := bus.Subscribe(caso, func(CaseEvent) { got++ })

	require.NoError(t, bus.Publish(context.Background(), CaseEvent{CasoID: caso}))
	unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), CaseEvent{CasoID: caso}))

	assert.Equal(t, 1, got)
}

func TestMemoryBusStampsTime(t *testing.T) {
	bus := NewMemoryBus()
	caso := uuid.New()

	var got CaseEvent
	bus.Subscribe(caso, func(ev CaseEvent) { got = ev })

	require.NoError(t, bus.Publish(context.Background(), CaseEvent{CasoID: caso}))
	assert.False(t, got.At.IsZero())
}
