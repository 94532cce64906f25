package acmeflow

import (
	"github.com/squadracorsepolito/acmeflow/energy"
	"github.com/squadracorsepolito/acmeflow/merger"
	"github.com/squadracorsepolito/acmeflow/questdb"
	"github.com/squadracorsepolito/acmeflow/router"
	"github.com/squadracorsepolito/acmeflow/ticker"
	"github.com/squadracorsepolito/acmeflow/udp"
)

// RegisterBuiltins adds the component types shipped with the module.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Factory{
		"Ticker":    ticker.New,
		"UDPSource": udp.New,
		"Energy":    energy.New,
		"Router":    router.New,
		"Merger":    merger.New,
		"QuestDB":   questdb.New,
	}

	for typ, factory := range builtins {
		if err := r.Register(typ, factory); err != nil {
			return err
		}
	}

	return nil
}
