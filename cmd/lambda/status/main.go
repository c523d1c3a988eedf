package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
)

type Response struct {
	Status int `json:"status"`
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event map[string]interface{}) (Response, error) {
	return Response{Status: 200}, nil
}
