// Profiling:
// go build ./profile/get
// go tool pprof -http=":8000" -nodefraction=0.001 ./get cpu.pprof

package main

import (
	"os"
	"reflect"

	"github.com/edwinsyarief/kura"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/goccy/go-json"
	"github.com/pkg/profile"
)

type position struct {
	V mgl64.Vec3
}

type velocity struct {
	V mgl64.Vec3
}

type likes struct {
	Weight float64
}

func main() {
	rounds := 20
	iters := 1000
	entities := 1000
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	stats := run(rounds, iters, entities)
	p.Stop()
	_ = json.NewEncoder(os.Stdout).Encode(stats)
}

func run(rounds, iters, numEntities int) kura.Stats {
	var stats kura.Stats
	for range rounds {
		w := kura.NewWorld(kura.WithInitialCapacity(numEntities))
		rel := w.NewEntity()
		if err := w.SetType(rel, reflect.TypeFor[likes]()); err != nil {
			panic(err)
		}
		target := w.NewEntity()
		base := w.NewEntity()
		if err := kura.Set(w, base, velocity{V: mgl64.Vec3{0, 1, 0}}); err != nil {
			panic(err)
		}

		list := make([]kura.Entity, 0, numEntities)
		for i := range numEntities {
			e := w.NewEntity()
			if err := kura.Set(w, e, position{V: mgl64.Vec3{float64(i), 0, 0}}); err != nil {
				panic(err)
			}
			if err := kura.SetPair(w, e, rel, target, likes{Weight: 1}); err != nil {
				panic(err)
			}
			if err := w.IsA(e, base); err != nil {
				panic(err)
			}
			list = append(list, e)
		}

		for range iters {
			for _, e := range list {
				pos := kura.GetMut[position](w, e)
				vel := kura.Get[velocity](w, e)
				l := kura.GetPair[likes](w, e, rel, target)
				pos.V = pos.V.Add(vel.V.Mul(l.Weight))
			}
		}
		stats = w.Stats()
	}
	return stats
}
