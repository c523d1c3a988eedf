package google

import (
	"errors"
	"fmt"
	"log"

	"google.golang.org/api/googleapi"
)

// callErrorMessage renders a failed remote call in one of the two categories
// the admin jobs distinguish: an HTTP error returned by the API, or a problem
// building the query before it ever reached the network.
func callErrorMessage(op string, err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: there was an API error: %d %s", op, apiErr.Code, apiErr.Message)
	}
	return fmt.Sprintf("%s: there was an error in constructing your query: %s", op, err)
}

func logCallError(op string, err error) {
	log.Println(callErrorMessage(op, err))
}
