package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/phylflow/dataflow"
	"github.com/delaneyj/phylflow/numeric"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
)

var cpuProfile = flag.String("cpuprofile", "default.pgo", "write a CPU profile to this file, empty to disable")

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")

	benchmarkPropagate("Dataflow", nil, true)
	benchmarkPropagate("Dataflow (interned)", dataflow.NewContext, true)
}

var (
	ww    = []int{1, 10, 100, 1_000}
	hh    = []int{1, 10, 100, 1_000}
	iters = 100
)

// chains builds w chains of h sums hanging from src and returns the end of
// each chain. Every chain starts by adding its own zero so that interning
// cannot merge the chains into one.
func chains(c *dataflow.Context, src *numeric.Parameter, w, h int) []numeric.Scalar {
	ends := make([]numeric.Scalar, 0, w)
	for i := 0; i < w; i++ {
		var last numeric.Scalar = src
		for j := 0; j < h; j++ {
			if j == 0 {
				last = numeric.NewAdd(c, last, numeric.NewZero())
				continue
			}
			last = numeric.NewAdd(c, last)
		}
		ends = append(ends, last)
	}
	return ends
}

func benchmarkPropagate(title string, newContext func() *dataflow.Context, shouldRender bool) {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			var c *dataflow.Context
			if newContext != nil {
				c = newContext()
			}
			src := numeric.NewParameter("src", 1)
			ends := chains(c, src, w, h)
			for _, end := range ends {
				end.GetValue()
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.SetValue(src.AccessValueRaw() + 1)
				for _, end := range ends {
					if end.GetValue() != src.AccessValueRaw() {
						log.Panicf("propagate: %d * %d: chain end out of date", w, h)
					}
				}
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
