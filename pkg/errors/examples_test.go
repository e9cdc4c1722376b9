package errors_test

import (
	"fmt"

	"github.com/agentstation/studiosync/pkg/errors"
)

func Example() {
	err := errors.NewNotFoundError("studio", "314")
	if errors.IsNotFound(err) {
		fmt.Println(err)
	}
	// Output: studio 314 not found
}

// Example_transient shows how callers decide whether to retry a registry call.
func Example_transient() {
	calls := []error{
		errors.NewAPIError("StashDB", 503, "maintenance"),
		errors.NewProtocolError("StashDB", "Not authorized"),
	}
	for _, err := range calls {
		fmt.Printf("%v -> retry=%v\n", err, errors.IsTransient(err))
	}
	// Output:
	// StashDB answered HTTP 503: maintenance -> retry=true
	// StashDB returned errors: Not authorized -> retry=false
}
