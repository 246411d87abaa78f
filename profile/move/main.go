// Profiling:
// go build ./profile/move
// go tool pprof -http=":8000" -nodefraction=0.001 ./move mem.pprof

package main

import (
	"os"

	"github.com/edwinsyarief/kura"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/goccy/go-json"
	"github.com/pkg/profile"
)

type transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

type velocity struct {
	V mgl64.Vec3
}

type frozen struct{}

func main() {
	count := 50
	iters := 1000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	stats := run(count, iters, entities)
	p.Stop()
	_ = json.NewEncoder(os.Stdout).Encode(stats)
}

func run(rounds, iters, numEntities int) kura.Stats {
	var stats kura.Stats
	for range rounds {
		w := kura.NewWorld(kura.WithInitialCapacity(numEntities))
		tag := kura.RegisterComponent[frozen](w)
		for range iters {
			entities := make([]kura.Entity, 0, numEntities)
			for range numEntities {
				e := w.NewEntity()
				_ = kura.Set(w, e, transform{Rotation: mgl64.QuatIdent()})
				entities = append(entities, e)
			}
			for _, e := range entities {
				_ = kura.Set(w, e, velocity{V: mgl64.Vec3{1, 0, 0}})
				_ = w.Add(e, tag.ID())
				_ = w.Remove(e, tag.ID())
			}
			for _, e := range entities {
				_ = w.Delete(e)
			}
			w.DeleteEmptyTables()
		}
		stats = w.Stats()
	}
	return stats
}
