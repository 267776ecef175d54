// Package queue provides the message transport shared by the application and
// the worker. Both processes see the broker only through Publisher and
// Receiver, consuming with manual acknowledgment: a received Delivery stays
// in flight until Ack is called.
//
// Two implementations are provided. RedisBroker is the production transport;
// MemoryBroker is an in-process transport used by tests.
package queue
