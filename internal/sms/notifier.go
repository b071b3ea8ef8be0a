package sms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Message templates.
const (
	tmplEmergencyConfirmation = "INKINGI Rescue: Your %s emergency has been reported successfully. Reference: %s. Help is on the way. Stay safe!"
	tmplDistressAlert         = "INKINGI Rescue DISTRESS ALERT: Emergency services have been notified. Your location: %s. Help is on the way. Stay calm and safe."
	tmplEmergencyUpdate       = "INKINGI Rescue: Emergency %s status update - %s"
	tmplRescueTeamDispatch    = "INKINGI Rescue: %s emergency reported at %s. Contact: %s. Respond immediately."
	tmplWelcome               = "Welcome to INKINGI Rescue, %s! Dial *XXX# for emergency services. Stay safe!"
)

// EmergencyConfirmation renders the confirmation sent to a reporter.
func EmergencyConfirmation(label, referenceID string) string {
	return fmt.Sprintf(tmplEmergencyConfirmation, label, referenceID)
}

// DistressAlert renders the distress acknowledgement.
func DistressAlert(location string) string {
	if location == "" {
		location = "Unknown"
	}
	return fmt.Sprintf(tmplDistressAlert, location)
}

// EmergencyUpdate renders a status update.
func EmergencyUpdate(referenceID, status string) string {
	return fmt.Sprintf(tmplEmergencyUpdate, referenceID, status)
}

// RescueTeamDispatch renders the message sent to rescue teams.
func RescueTeamDispatch(label, location, reporter string) string {
	return fmt.Sprintf(tmplRescueTeamDispatch, label, location, reporter)
}

// Welcome renders the welcome message.
func Welcome(name string) string {
	if name == "" {
		name = "User"
	}
	return fmt.Sprintf(tmplWelcome, name)
}

// Notifier sends notifications in the background. Failures are logged only.
type Notifier struct {
	sender      Sender
	rescueTeams []string
	timeout     time.Duration
	wg          sync.WaitGroup
}

// NewNotifier creates a notifier. A nil sender disables delivery.
func NewNotifier(sender Sender, rescueTeams []string) *Notifier {
	return &Notifier{
		sender:      sender,
		rescueTeams: rescueTeams,
		timeout:     15 * time.Second,
	}
}

// Enabled reports whether messages are delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

func (n *Notifier) dispatch(kind string, to []string, message string, bulk bool) {
	if !n.Enabled() {
		log.Debug().Str("kind", kind).Msg("SMS disabled, skipping notification")
		return
	}
	if len(to) == 0 {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		res, err := n.sender.Send(ctx, to, message, bulk)
		if err != nil {
			log.Warn().Err(err).Str("kind", kind).Int("recipients", len(to)).Msg("SMS notification failed")
			return
		}
		log.Info().Str("kind", kind).Int("recipients", len(res.Recipients)).Msg("SMS notification sent")
	}()
}

// NotifyEmergency confirms a report to the reporter.
func (n *Notifier) NotifyEmergency(phone, label, referenceID string) {
	n.dispatch("emergency_confirmation", []string{phone}, EmergencyConfirmation(label, referenceID), false)
}

// NotifyDistress acknowledges a distress alert.
func (n *Notifier) NotifyDistress(phone, location string) {
	n.dispatch("distress_alert", []string{phone}, DistressAlert(location), false)
}

// NotifyRescueTeams alerts every configured rescue team number.
func (n *Notifier) NotifyRescueTeams(label, location, reporter string) {
	if n == nil {
		return
	}
	n.dispatch("rescue_team_dispatch", n.rescueTeams, RescueTeamDispatch(label, location, reporter), true)
}

// NotifyUpdate sends an emergency status update.
func (n *Notifier) NotifyUpdate(phone, referenceID, status string) {
	n.dispatch("emergency_update", []string{phone}, EmergencyUpdate(referenceID, status), false)
}

// NotifyWelcome greets a new subscriber.
func (n *Notifier) NotifyWelcome(phone, name string) {
	n.dispatch("welcome", []string{phone}, Welcome(name), false)
}

// Send delivers a message synchronously.
func (n *Notifier) Send(ctx context.Context, phone, message string) (SendResult, error) {
	if !n.Enabled() {
		return SendResult{}, fmt.Errorf("sms disabled")
	}
	return n.sender.Send(ctx, []string{phone}, message, false)
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
