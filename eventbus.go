package kura

import "reflect"

// MaxEventTypes defines the maximum number of unique event types that can be
// registered in an EventBus.
const MaxEventTypes = 64

// EventBus delivers storage events to subscribers. Handlers run synchronously
// on the goroutine that changed the world, in subscription order.
//
// Publishing with no subscriber for the event type does not allocate.
type EventBus struct {
	eventTypeMap    map[reflect.Type]uint8
	handlers        [MaxEventTypes][]any
	nextEventTypeID uint8
}

// Subscribe registers handler for events of type T.
func Subscribe[T any](bus *EventBus, handler func(T)) {
	id := bus.getEventTypeID(reflect.TypeFor[T]())
	if cap(bus.handlers[id]) == 0 {
		bus.handlers[id] = make([]any, 0, 4)
	}
	bus.handlers[id] = append(bus.handlers[id], handler)
}

// Publish sends event to every handler subscribed to T.
func Publish[T any](bus *EventBus, event T) {
	if bus == nil || len(bus.eventTypeMap) == 0 {
		return
	}
	id, ok := bus.eventTypeMap[reflect.TypeFor[T]()]
	if !ok {
		return
	}
	for _, h := range bus.handlers[id] {
		h.(func(T))(event)
	}
}

// Reset drops every subscription.
func (bus *EventBus) Reset() {
	clear(bus.eventTypeMap)
	for i := range bus.nextEventTypeID {
		bus.handlers[i] = nil
	}
	bus.nextEventTypeID = 0
}

func (bus *EventBus) getEventTypeID(t reflect.Type) uint8 {
	if bus.eventTypeMap == nil {
		bus.eventTypeMap = make(map[reflect.Type]uint8)
	}
	if id, ok := bus.eventTypeMap[t]; ok {
		return id
	}
	id := bus.nextEventTypeID
	if int(id) >= MaxEventTypes {
		panic("kura: too many event types")
	}
	bus.nextEventTypeID++
	bus.eventTypeMap[t] = id
	return id
}

// TableCreated is published after a table has been created and registered.
type TableCreated struct {
	Table *Table
}

// TableDeleted is published before an empty table is freed.
type TableDeleted struct {
	TableID uint32
	Type    []ID
}

// ComponentRecordReleased is published when the record of an id is freed.
type ComponentRecordReleased struct {
	ID ID
}
