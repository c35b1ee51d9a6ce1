package queue

import "errors"

// ErrLeaseLost is returned by Ack, Nack and Extend when the delivery's lease
// expired and another consumer leased the item, or the item was purged.
var ErrLeaseLost = errors.New("queue lease lost")
