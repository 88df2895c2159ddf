package models

import "fmt"

var ErrInvalidRecoveryPolicy = fmt.Errorf("recovery policy must be auto or next_session")
