package sim

import "errors"

// ErrDesync marks a fatal divergence between the two peers' catalogs or
// state: an out-of-range play slot, a play from an empty hand, or a card
// identifier the registry cannot resolve. These conditions are never
// recovered from inside the simulation; the session must be torn down and
// resynchronized externally.
var ErrDesync = errors.New("state divergence")
