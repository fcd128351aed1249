package sensor

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured returns Options filled from flags once lflag.Configure is
// called. Location, Clock and Gate are left for the caller.
func Configured() *Options {
	var o Options
	zero := lflag.String("zero-usage-policy", string(ZeroIsValue), "What a daily total of zero means: \"value\" shows it, \"no-data\" keeps the previous value")

	lflag.Do(func() {
		o.ZeroPolicy = ZeroPolicy(*zero)
		if err := o.ZeroPolicy.Validate(); err != nil {
			panic(fmt.Sprintf("invalid zero-usage-policy: %v", err))
		}
	})
	return &o
}
