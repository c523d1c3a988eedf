package alert

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const defaultCharSet = "UTF-8"

type Config struct {
	AWSRegion          string
	CharSet            string
	ReturnToAddr       string
	SubjectText        string
	RecipientEmails    []string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// SendEmail sends the body to each configured recipient, one at a time so
// that one bad address does not prevent delivery to the rest. Only the last
// send error is reported.
func SendEmail(config Config, body string) {
	if len(config.RecipientEmails) == 0 {
		log.Printf("no alert recipients configured, dropping alert: %s", body)
		return
	}

	emailMsg := newMessage(config, body)

	lastError := ""
	var badRecipients []string

	for _, address := range config.RecipientEmails {
		if err := sendAnEmail(emailMsg, address, config); err != nil {
			lastError = err.Error()
			badRecipients = append(badRecipients, address)
		}
	}

	if lastError != "" {
		addresses := strings.Join(badRecipients, ", ")
		log.Printf("Error sending alert email from '%s' to '%s': %s",
			config.ReturnToAddr, addresses, lastError)
	}
}

func newMessage(config Config, body string) types.Message {
	charSet := config.CharSet
	if charSet == "" {
		charSet = defaultCharSet
	}

	subject := config.SubjectText

	return types.Message{
		Subject: &types.Content{
			Charset: &charSet,
			Data:    &subject,
		},
		Body: &types.Body{
			Text: &types.Content{
				Charset: &charSet,
				Data:    &body,
			},
		},
	}
}

func sendAnEmail(emailMsg types.Message, recipient string, cfg Config) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &emailMsg,
		Source:  aws.String(cfg.ReturnToAddr),
	}

	svc, err := createSESService(cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
	if err != nil {
		return fmt.Errorf("failed to create SES service: %w", err)
	}

	result, err := svc.SendEmail(context.Background(), input)
	if err != nil {
		return fmt.Errorf("error sending email, error: %w", err)
	}
	log.Printf("alert message sent to %s, message ID: %s", recipient, *result.MessageId)
	return nil
}

func createSESService(region, key, secret string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("AWS SDK LoadDefaultConfig failed: %w", err)
	}

	cfg.Region = region
	if key != "" && secret != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(key, secret, "")
	}

	return ses.NewFromConfig(cfg), nil
}
