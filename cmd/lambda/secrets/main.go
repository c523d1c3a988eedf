package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/silinternational/analytics-admin/secrets"
)

type Response struct {
	Status int `json:"status"`
}

func main() {
	lambda.Start(handler)
}

// handler pulls the client_secrets.json object out of the configured bucket
// and logs what it decoded. It reports the same fixed status either way;
// fetch and parse problems only show up in the logs.
func handler(ctx context.Context, event map[string]interface{}) (Response, error) {
	bucket := os.Getenv("SECRETS_BUCKET")
	if bucket == "" {
		log.Println("SECRETS_BUCKET is not set, nothing to fetch")
		return Response{Status: 200}, nil
	}

	client, err := secrets.NewS3Client(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		log.Printf("unable to create S3 client, error: %s", err)
		return Response{Status: 200}, nil
	}

	data, err := secrets.Fetch(ctx, client, bucket, os.Getenv("SECRETS_KEY"))
	if err != nil {
		log.Printf("unable to fetch secrets, error: %s", err)
		return Response{Status: 200}, nil
	}

	if _, err := secrets.ParseGoogleAuth(data); err != nil {
		log.Printf("unable to parse secrets, error: %s", err)
	}

	return Response{Status: 200}, nil
}
