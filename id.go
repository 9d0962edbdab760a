package credits

import "github.com/xraph/credits/id"

// ID is the identifier type for payments and published events.
type ID = id.ID
