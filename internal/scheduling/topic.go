package scheduling

import "fmt"

// Topic is a bookable meeting category. Topics are static configuration, not
// persisted per-request.
type Topic struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DurationMins    int     `json:"duration_mins"`
	RequiresDeposit bool    `json:"requires_deposit"`
	// DepositAmount is in the site's base currency unit (e.g. dollars).
	DepositAmount float64 `json:"deposit_amount,omitempty"`
}

// Catalog holds the bookable topics keyed by id.
type Catalog struct {
	topics map[string]Topic
	order  []string
}

// DefaultTopics returns the site's booking catalog.
func DefaultTopics() *Catalog {
	catalog, err := NewCatalog(
		Topic{
			ID:           "consultation",
			Name:         "General Consultation",
			Description:  "Intro call to discuss your project or questions.",
			DurationMins: 30,
		},
		Topic{
			ID:           "resume-review",
			Name:         "Resume Review",
			Description:  "Live walkthrough of your resume with feedback.",
			DurationMins: 45,
		},
		Topic{
			ID:              "development",
			Name:            "Development Project",
			Description:     "Kickoff session for a paid development engagement.",
			DurationMins:    60,
			RequiresDeposit: true,
			DepositAmount:   100,
		},
		Topic{
			ID:              "mentoring",
			Name:            "Mentoring Session",
			Description:     "One-on-one mentoring, reserved with a deposit.",
			DurationMins:    60,
			RequiresDeposit: true,
			DepositAmount:   50,
		},
	)
	if err != nil {
		panic(err)
	}
	return catalog
}

// NewCatalog validates and indexes a set of topics.
func NewCatalog(topics ...Topic) (*Catalog, error) {
	c := &Catalog{topics: make(map[string]Topic, len(topics))}
	for _, t := range topics {
		if t.ID == "" {
			return nil, fmt.Errorf("scheduling: topic id required")
		}
		if t.RequiresDeposit && t.DepositAmount <= 0 {
			return nil, fmt.Errorf("scheduling: topic %s requires a positive deposit amount", t.ID)
		}
		if _, exists := c.topics[t.ID]; exists {
			return nil, fmt.Errorf("scheduling: duplicate topic id %s", t.ID)
		}
		c.topics[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	return c, nil
}

// Get returns the topic for id.
func (c *Catalog) Get(id string) (Topic, bool) {
	t, ok := c.topics[id]
	return t, ok
}

// All returns topics in declaration order.
func (c *Catalog) All() []Topic {
	out := make([]Topic, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.topics[id])
	}
	return out
}
