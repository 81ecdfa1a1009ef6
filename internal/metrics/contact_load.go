package metrics

import "github.com/san-kum/rigidsim/internal/engine"

// ContactLoad is the mean number of contact points per step.
type ContactLoad struct {
	name    string
	sum     float64
	samples int
}

func NewContactLoad() *ContactLoad {
	return &ContactLoad{
		name: "contact_load",
	}
}

func (c *ContactLoad) Name() string {
	return c.name
}

func (c *ContactLoad) Observe(stats engine.UpdateStats) {
	c.sum += float64(stats.Contacts)
	c.samples++
}

func (c *ContactLoad) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ContactLoad) Reset() {
	c.sum = 0
	c.samples = 0
}
