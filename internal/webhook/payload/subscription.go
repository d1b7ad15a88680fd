package payload

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           ref               `json:"customer"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func decodeSubscription(ev *Event) (*subscriptionObject, error) {
	var sub subscriptionObject
	if err := unmarshalObject(ev, &sub); err != nil {
		return nil, err
	}
	if err := requireField(ev, "id", sub.ID); err != nil {
		return nil, err
	}
	if err := requireField(ev, "status", sub.Status); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionObject) changed(deleted bool) *SubscriptionChanged {
	out := &SubscriptionChanged{
		Linkage:    linkage(s.Metadata, s.Customer),
		Status:     s.Status,
		Deleted:    deleted,
		CanceledAt: unixTime(s.CanceledAt),
	}
	out.ExternalSubscriptionID = s.ID

	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.PriceID = item.Price.ID
		// newer API versions only carry the period on items
		if end <= 0 {
			start, end = item.CurrentPeriodStart, item.CurrentPeriodEnd
		}
	}
	out.CurrentPeriodStart = unixTime(start)
	out.CurrentPeriodEnd = unixTime(end)
	return out
}
