package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/delaneyj/phylflow/dataflow"
	"github.com/delaneyj/phylflow/numeric"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func main() {
	log.Print("Starting layered dataflow benchmark, please wait...")
	defer log.Print("Finished layered dataflow benchmark")

	perfTestCfgs := []benchmarkTestConfig{
		{name: "simple component", width: 10, nSources: 2, totalLayers: 5, readFraction: 0.2, iterations: 600000},
		{name: "large web app", width: 1000, nSources: 4, totalLayers: 12, readFraction: 1, iterations: 7000},
		{name: "wide dense", width: 1000, nSources: 25, totalLayers: 5, readFraction: 1, iterations: 3000},
		{name: "deep", width: 5, nSources: 3, totalLayers: 500, readFraction: 1, iterations: 500},
		{name: "wide shallow", width: 100, nSources: 6, totalLayers: 15, readFraction: 1, iterations: 2000},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"size", "nSources", "read%", "nTimes", "test", "time", "computes", "updateRate",
	})

	testRepeats := 5
	for _, cfg := range perfTestCfgs {
		log.Printf("Running '%s' config", cfg.name)
		counter := new(int64)
		graph := benchmarkMakeGraph(cfg, counter)

		runOnce := func() float64 {
			return benchmarkRunGraph(graph, cfg.iterations, cfg.readFraction)
		}
		// warm up
		runOnce()

		var (
			bestDuration = time.Hour
			bestCount    int64
		)
		for i := 0; i < testRepeats; i++ {
			log.Printf("Running '%s' config, iteration %d/%d", cfg.name, i+1, testRepeats)
			*counter = 0
			start := time.Now()
			runOnce()
			if d := time.Since(start); d < bestDuration {
				bestDuration = d
				bestCount = *counter
			}
		}

		updateRate := float64(bestCount) / (float64(bestDuration) / float64(time.Millisecond))
		table.Append([]string{
			fmt.Sprintf("%dx%d", cfg.width, cfg.totalLayers),
			fmt.Sprint(cfg.nSources),
			fmt.Sprint(cfg.readFraction),
			humanize.Comma(cfg.iterations),
			cfg.name,
			fmt.Sprint(bestDuration),
			humanize.Comma(bestCount),
			humanize.Comma(int64(updateRate)),
		})
	}
	table.Render()
}

type benchmarkTestConfig struct {
	name         string
	width        int
	totalLayers  int
	nSources     int     // dependencies of each node on the previous layer
	readFraction float64 // fraction of the last layer read after each write
	iterations   int64
}

type benchmarkGraph struct {
	sources []*numeric.Parameter
	layers  [][]*countedSum
}

// countedSum is a sum that counts its computations into a shared counter.
type countedSum struct {
	dataflow.Value[float64]
	terms   []numeric.Scalar
	counter *int64
}

func newCountedSum(counter *int64, terms []numeric.Scalar) *countedSum {
	n := &countedSum{terms: terms, counter: counter}
	deps := make([]dataflow.Node, len(terms))
	for i, t := range terms {
		deps[i] = t
	}
	dataflow.InitValue[float64](n, deps, 0)
	return n
}

func (n *countedSum) Compute() {
	*n.counter++
	sum := 0.0
	for _, t := range n.terms {
		sum += t.AccessValueRaw()
	}
	*n.AccessValueMutable() = sum
}

func benchmarkMakeGraph(cfg benchmarkTestConfig, counter *int64) *benchmarkGraph {
	g := &benchmarkGraph{sources: make([]*numeric.Parameter, cfg.width)}
	prev := make([]numeric.Scalar, cfg.width)
	for i := range g.sources {
		g.sources[i] = numeric.NewParameter(fmt.Sprintf("s%d", i), float64(i))
		prev[i] = g.sources[i]
	}

	for l := 1; l < cfg.totalLayers; l++ {
		row := make([]*countedSum, cfg.width)
		next := make([]numeric.Scalar, cfg.width)
		for myDex := range row {
			terms := make([]numeric.Scalar, 0, cfg.nSources)
			for sourceDex := 0; sourceDex < cfg.nSources; sourceDex++ {
				terms = append(terms, prev[(myDex+sourceDex)%len(prev)])
			}
			row[myDex] = newCountedSum(counter, terms)
			next[myDex] = row[myDex]
		}
		g.layers = append(g.layers, row)
		prev = next
	}
	return g
}

// benchmarkRunGraph writes one source per iteration then reads some or all
// of the leaves. It returns the sum of the leaves read.
func benchmarkRunGraph(g *benchmarkGraph, iterations int64, readFraction float64) float64 {
	random := rand.New(rand.NewSource(0))
	leaves := g.layers[len(g.layers)-1]
	skipCount := int(math.Round(float64(len(leaves)) * (1 - readFraction)))
	readLeaves := benchmarkRemoveElems(leaves, skipCount, random)

	for i := 0; i < int(iterations); i++ {
		sourceDex := i % len(g.sources)
		g.sources[sourceDex].SetValue(float64(i + sourceDex))
		for _, leaf := range readLeaves {
			leaf.GetValue()
		}
	}

	sum := 0.0
	for _, leaf := range readLeaves {
		sum += leaf.GetValue()
	}
	return sum
}

func benchmarkRemoveElems[T any](src []T, rmCount int, rand *rand.Rand) []T {
	copyWithRemovals := make([]T, len(src))
	copy(copyWithRemovals, src)
	for i := 0; i < rmCount; i++ {
		rmDex := rand.Intn(len(copyWithRemovals))
		copyWithRemovals[rmDex] = copyWithRemovals[len(copyWithRemovals)-1]
		copyWithRemovals = copyWithRemovals[:len(copyWithRemovals)-1]
	}
	return copyWithRemovals
}
