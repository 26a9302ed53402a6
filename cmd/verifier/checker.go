package main

import (
	"encoding/json"
	"fmt"

	"github.com/ismaiel54/limit-order-book/internal/msg"
)

// stream tracks the sequence numbers seen on one topic
type stream struct {
	last     uint64
	events   int
	gaps     []string
	restarts int
}

// observe records seq. The engine keeps its book in memory, so a
// sequence that starts over at 1 is a restart rather than a gap.
func (s *stream) observe(seq uint64) {
	s.events++
	switch {
	case s.last == 0 || seq == s.last+1:
	case seq == 1:
		s.restarts++
	default:
		s.gaps = append(s.gaps, fmt.Sprintf("expected seq %d, got %d", s.last+1, seq))
	}
	s.last = seq
}

// checker accumulates violations across orders.events and book.top
type checker struct {
	orders   stream
	top      stream
	eventIDs map[string]string // event_id -> topic
	commands map[string]uint64 // command_event_id -> seq of its first event
	statuses map[string]int

	duplicateEvents   []string
	reappliedCommands []string
	missingReasons    []string
	undecodable       int
}

func newChecker() *checker {
	return &checker{
		eventIDs: make(map[string]string),
		commands: make(map[string]uint64),
		statuses: make(map[string]int),
	}
}

func (c *checker) handle(rec msg.Record) {
	switch rec.Topic {
	case msg.TopicOrdersEvents:
		var ev msg.OrderEventMsg
		if err := json.Unmarshal(rec.Value, &ev); err != nil {
			c.undecodable++
			return
		}
		if !c.firstSighting(ev.EventID, rec.Topic) {
			return
		}
		c.orders.observe(ev.Seq)
		c.statuses[ev.Status]++

		if ev.Status == msg.StatusRejected && ev.Reason == "" {
			c.missingReasons = append(c.missingReasons, ev.EventID)
		}
		if ev.CommandEventID != "" {
			if first, ok := c.commands[ev.CommandEventID]; ok && first != ev.Seq {
				c.reappliedCommands = append(c.reappliedCommands,
					fmt.Sprintf("%s at seq %d and %d", ev.CommandEventID, first, ev.Seq))
			} else if !ok {
				c.commands[ev.CommandEventID] = ev.Seq
			}
		}

	case msg.TopicBookTop:
		var top msg.TopOfBookMsg
		if err := json.Unmarshal(rec.Value, &top); err != nil {
			c.undecodable++
			return
		}
		if !c.firstSighting(top.EventID, rec.Topic) {
			return
		}
		c.top.observe(top.Seq)
	}
}

// firstSighting records id and reports whether it is new
func (c *checker) firstSighting(id, topic string) bool {
	if prev, ok := c.eventIDs[id]; ok {
		c.duplicateEvents = append(c.duplicateEvents, fmt.Sprintf("%s (%s, %s)", id, prev, topic))
		return false
	}
	c.eventIDs[id] = topic
	return true
}

func (c *checker) failed() bool {
	return len(c.orders.gaps) > 0 || len(c.top.gaps) > 0 ||
		len(c.duplicateEvents) > 0 || len(c.reappliedCommands) > 0 ||
		len(c.missingReasons) > 0
}
