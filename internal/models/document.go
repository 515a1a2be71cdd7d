package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Init methods assign a fresh identifier and creation timestamps to a new
// document before it is inserted.

func (v *Vehicle) Init(now time.Time) {
	v.ID, v.CreatedAt, v.UpdatedAt = primitive.NewObjectID(), now, now
}

func (e *DriverEarning) Init(now time.Time) {
	e.ID, e.CreatedAt, e.UpdatedAt = primitive.NewObjectID(), now, now
}

func (q *Question) Init(now time.Time) {
	q.ID, q.CreatedAt, q.UpdatedAt = primitive.NewObjectID(), now, now
}

func (n *Notification) Init(now time.Time) {
	n.ID, n.CreatedAt, n.UpdatedAt = primitive.NewObjectID(), now, now
}

func (l *Location) Init(now time.Time) {
	l.ID, l.CreatedAt, l.UpdatedAt = primitive.NewObjectID(), now, now
	l.Location = l.Location.Normalized()
}

func (p *Package) Init(now time.Time) {
	p.ID, p.CreatedAt, p.UpdatedAt = primitive.NewObjectID(), now, now
}

func (s *Subscription) Init(now time.Time) {
	s.ID, s.CreatedAt, s.UpdatedAt = primitive.NewObjectID(), now, now
}

func (d *Discount) Init(now time.Time) {
	d.ID, d.CreatedAt, d.UpdatedAt = primitive.NewObjectID(), now, now
}

func (o *Order) Init(now time.Time) {
	o.ID, o.CreatedAt, o.UpdatedAt = primitive.NewObjectID(), now, now
}
