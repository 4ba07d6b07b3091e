package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/ewhitmore/driveline/internal/models"
)

// AWSSESEmailService sends booking confirmations using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendBookingConfirmation sends the reservation summary to the customer
func (s *AWSSESEmailService) SendBookingConfirmation(ctx context.Context, booking *models.Booking) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .details { background-color: #f8f9fa; padding: 16px; border-radius: 4px; }
        .details td { padding: 4px 12px 4px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Booking Confirmed</h1>
        </div>
        <div class="content">
            <p>Hi %s,</p>
            <p>Your car rental is booked. Here are the details:</p>
            <table class="details">
                <tr><td><strong>Booking reference</strong></td><td>%s</td></tr>
                <tr><td><strong>Pickup date</strong></td><td>%s</td></tr>
                <tr><td><strong>Return date</strong></td><td>%s</td></tr>
                <tr><td><strong>Total price</strong></td><td>$%.2f</td></tr>
            </table>
            <p>Please bring a valid driver's license and the payment card used for this booking.</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
            <p>If you need to change or cancel your booking, contact our support team.</p>
        </div>
    </div>
</body>
</html>
`, booking.CustomerName, booking.ID, booking.PickupDate, booking.ReturnDate, booking.TotalPrice)

	textBody := fmt.Sprintf(`Booking Confirmed

Hi %s,

Your car rental is booked. Here are the details:

Booking reference: %s
Pickup date:       %s
Return date:       %s
Total price:       $%.2f

Please bring a valid driver's license and the payment card used for this booking.

This is an automated message. Please do not reply to this email.
If you need to change or cancel your booking, contact our support team.
`, booking.CustomerName, booking.ID, booking.PickupDate, booking.ReturnDate, booking.TotalPrice)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{booking.CustomerEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Booking confirmed: %s to %s", booking.PickupDate, booking.ReturnDate)),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send booking confirmation via SES",
			slog.String("booking_id", booking.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("booking confirmation sent",
		slog.String("booking_id", booking.ID),
		slog.String("message_id", *result.MessageId))

	return nil
}
