// Package notify posts profit alerts to an operator-configured webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"marketwatch/internal/dedup"
)

// Alert is the outbound payload for a high-profit observation.
type Alert struct {
	Good        string `json:"good_name"`
	Region      string `json:"region_id"`
	LocalPrice  int64  `json:"local_price"`
	FriendPrice int64  `json:"friend_price"`
	Profit      int64  `json:"profit"`
	Text        string `json:"text"`
}

// SendProfitAlert posts an observation to the webhook if one is
// configured. A blank URL disables alerting.
func SendProfitAlert(url string, obs dedup.Observation) error {
	if url == "" {
		return nil
	}
	alert := Alert{
		Good:        obs.Good,
		Region:      obs.Region,
		LocalPrice:  obs.LocalPrice,
		FriendPrice: obs.FriendPrice,
		Profit:      obs.Profit(),
		Text:        fmt.Sprintf("%s (%s): buy %d, sell %d, margin %d", obs.Good, obs.Region, obs.LocalPrice, obs.FriendPrice, obs.Profit()),
	}
	buf, _ := json.Marshal(alert)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(buf))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
