package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"stationmatrix-backend/models"
	"stationmatrix-backend/utils"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

const DefaultTransferMessage = "Hi [CustomerName], your appointment on [AppointmentTime] has moved to [StationName]."

// TwilioConfig holds the credentials and sender numbers for outgoing messages.
type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

type messageSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier texts customers whose appointments were moved to another
// station and records every attempt in notification_logs.
type TwilioNotifier struct {
	db     *gorm.DB
	sender messageSender
	cfg    TwilioConfig
}

func NewTwilioNotifier(db *gorm.DB, cfg TwilioConfig) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{db: db, sender: client.Api, cfg: cfg}
}

// renderTransferMessage fills the template placeholders for one appointment.
func renderTransferMessage(template string, appt models.Appointment, station models.Station) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTransferMessage
	}
	r := strings.NewReplacer(
		"[CustomerName]", appt.Customer.Name,
		"[StationName]", station.Name,
		"[AppointmentTime]", appt.StartsAt.Format("Mon 02 Jan 15:04"),
	)
	return r.Replace(template)
}

func (n *TwilioNotifier) salon(ctx context.Context, appt models.Appointment) (models.Salon, string, error) {
	var salon models.Salon
	if err := n.db.WithContext(ctx).First(&salon, "id = ?", appt.SalonID).Error; err != nil {
		return salon, "", err
	}

	var template models.NotificationTemplate
	err := n.db.WithContext(ctx).
		Where("salon_id = ? AND type = ? AND is_active = true", appt.SalonID, models.NotificationStationTransfer).
		First(&template).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return salon, "", err
	}
	return salon, template.Message, nil
}

// AppointmentsTransferred sends one message per appointment. Failures are
// logged and never returned.
func (n *TwilioNotifier) AppointmentsTransferred(ctx context.Context, appointments []models.Appointment, to models.Station) {
	if len(appointments) == 0 {
		return
	}
	salon, template, err := n.salon(ctx, appointments[0])
	if err != nil {
		log.Printf("[NOTIFY] salon %s: could not load notification settings: %v", appointments[0].SalonID, err)
		return
	}
	if !salon.TransferNotifications {
		return
	}

	entries := n.deliver(salon, template, appointments, to)
	if len(entries) == 0 {
		return
	}
	if err := n.db.WithContext(ctx).Create(&entries).Error; err != nil {
		log.Printf("[NOTIFY] failed to log %d notifications: %v", len(entries), err)
	}
}

// deliver texts every customer with a usable phone number and returns one
// log entry per attempt.
func (n *TwilioNotifier) deliver(salon models.Salon, template string, appointments []models.Appointment, to models.Station) []models.NotificationLog {
	var entries []models.NotificationLog
	for _, appt := range appointments {
		phone := appt.Customer.Phone
		if !utils.ValidatePhone(phone) {
			log.Printf("[NOTIFY] skipping customer %s: no valid phone number", appt.CustomerID)
			continue
		}
		message := renderTransferMessage(template, appt, to)

		channel := "sms"
		params := &twilioApi.CreateMessageParams{}
		if salon.WhatsAppNotifications && strings.HasPrefix(phone, "+") {
			channel = "whatsapp"
			params.SetFrom("whatsapp:" + n.cfg.WhatsAppNumber)
			params.SetTo("whatsapp:" + phone)
		} else {
			params.SetFrom(n.cfg.PhoneNumber)
			params.SetTo(phone)
		}
		params.SetBody(message)

		status, errorMsg := "sent", ""
		resp, err := n.sender.CreateMessage(params)
		if err != nil {
			log.Printf("[NOTIFY] failed to send message to %s: %v", phone, err)
			status, errorMsg = "failed", err.Error()
		} else if resp != nil && resp.Sid != nil {
			log.Printf("[NOTIFY] message sent to %s, SID: %s", phone, *resp.Sid)
		}
		notificationsSent.WithLabelValues(channel, status).Inc()

		entries = append(entries, models.NotificationLog{
			SalonID:       appt.SalonID,
			CustomerID:    appt.CustomerID,
			AppointmentID: appt.ID,
			Type:          models.NotificationStationTransfer,
			Message:       message,
			Status:        status,
			ErrorMessage:  errorMsg,
			Channel:       channel,
			SentAt:        time.Now(),
		})
	}
	return entries
}
