/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godofs/InputParameters"
	"github.com/notargets/godofs/constraints"
	"github.com/notargets/godofs/distributed"
	"github.com/notargets/godofs/dofs"
	"github.com/notargets/godofs/fe"
	"github.com/notargets/godofs/mesh"
	"github.com/notargets/godofs/partition"
	"github.com/notargets/godofs/partition/metis"
	"github.com/notargets/godofs/utils"
)

type ModelDistribute struct {
	ICFile     string
	ProfileDir string
	Perf       bool
}

// RankReport summarizes the index sets of one rank
type RankReport struct {
	Rank          int
	Cells         int
	Owned         int
	Relevant      int
	Ghosts        int
	Constraints   int
	RelevantBytes int // zstd compressed size of the relevant set
}

type Report struct {
	NActiveCells int
	NDofs        int
	Element      string
	Cycles       uint64
	Partition    partition.Stats
	Ranks        []RankReport
}

// DistributeCmd represents the distribute command
var DistributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Number and distribute the degrees of freedom of a refined hypercube over ranks",
	Long: `
Builds a hypercube mesh, refines it globally and toward the origin, partitions the active cells, numbers the
degrees of freedom rank by rank and reports each rank's owned and relevant sets

godofs distribute -I input.yaml --ranks 4 --partitioner metis`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			md  = &ModelDistribute{}
		)
		fmt.Println("distribute called")
		if md.ICFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		md.ProfileDir, _ = cmd.Flags().GetString("profile")
		md.Perf, _ = cmd.Flags().GetBool("perf")
		ip := processDistributeInput(md)
		if len(md.ProfileDir) != 0 {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(md.ProfileDir), profile.NoShutdownHook).Stop()
		}
		var rpt *Report
		if rpt, err = RunDistribute(md, ip); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			if errors.Is(err, distributed.ErrOwnershipInconsistent) {
				os.Exit(2)
			}
			os.Exit(1)
		}
		rpt.Print()
	},
}

func init() {
	rootCmd.AddCommand(DistributeCmd)
	DistributeCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Dimension\n\t- PolynomialOrder\n\t- Ranks")
	DistributeCmd.Flags().IntP("ranks", "r", 0, "number of ranks, overrides the input file")
	DistributeCmd.Flags().StringP("partitioner", "p", "", "contiguous or metis, overrides the input file")
	DistributeCmd.Flags().Bool("strict", false, "enable the expensive consistency checks")
	DistributeCmd.Flags().String("profile", "", "write a CPU profile into this directory")
	DistributeCmd.Flags().Bool("perf", false, "count CPU cycles of the numbering (linux)")
	for _, name := range []string{"ranks", "partitioner", "strict"} {
		if err := viper.BindPFlag(name, DistributeCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func processDistributeInput(md *ModelDistribute) (ip *InputParameters.DofParameters) {
	var err error
	ip = InputParameters.NewDofParameters()
	if len(md.ICFile) != 0 {
		var data []byte
		if data, err = os.ReadFile(md.ICFile); err != nil {
			panic(err)
		}
		if err = ip.Parse(data); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			exampleFile := `
########################################
Title: "Refined corner"
Dimension: 2
Subdivisions: 4
GlobalRefinements: 1
LocalRefinements: 2
PolynomialOrder: 2
Components: 1
Ranks: 4
Partitioner: metis # Can be "contiguous"
########################################
`
			fmt.Printf("Example File:%s\n", exampleFile)
			os.Exit(1)
		}
	}
	// Flags, environment (GODOFS_RANKS) and the config file override the input file
	if r := viper.GetInt("ranks"); r > 0 {
		ip.Ranks = r
	}
	if p := viper.GetString("partitioner"); len(p) != 0 {
		ip.Partitioner = p
	}
	if viper.GetBool("strict") {
		ip.Strict = true
	}
	if err = ip.Validate(); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	ip.Print()
	return
}

func NewPartitioner(name string) (partition.Partitioner, error) {
	switch name {
	case "contiguous":
		return partition.Contiguous{}, nil
	case "metis":
		return metis.New(nil), nil
	}
	return nil, fmt.Errorf("unknown partitioner %q", name)
}

func NewElement(ip *InputParameters.DofParameters) (element fe.FiniteElement) {
	element = fe.NewQ(ip.Dimension, ip.PolynomialOrder)
	if ip.Components > 1 {
		element = fe.NewSystem(element, ip.Components)
	}
	return
}

// BuildMesh refines the hypercube globally, then repeatedly refines the finest cell at the origin
func BuildMesh(ip *InputParameters.DofParameters) (tr *mesh.Triangulation, err error) {
	if tr, err = mesh.NewHyperCube(ip.Dimension, ip.Subdivisions, 0, 1); err != nil {
		return
	}
	tr.RefineGlobal(ip.GlobalRefinements)
	for n := 0; n < ip.LocalRefinements; n++ {
		for _, cr := range tr.ActiveCells() {
			c := tr.Cell(cr.Level, cr.Index)
			if tr.Vertex(c.Vertices[0]) == (mesh.Point{}) {
				tr.SetRefineFlag(cr.Level, cr.Index)
				break
			}
		}
		tr.ExecuteRefinement()
	}
	return
}

func RunDistribute(md *ModelDistribute, ip *InputParameters.DofParameters) (rpt *Report, err error) {
	var (
		tr      *mesh.Triangulation
		p       partition.Partitioner
		element = NewElement(ip)
	)
	if tr, err = BuildMesh(ip); err != nil {
		return
	}
	if p, err = NewPartitioner(ip.Partitioner); err != nil {
		return
	}
	if err = p.Partition(tr, ip.Ranks); err != nil {
		return
	}
	rpt = &Report{
		NActiveCells: tr.NActiveCells(),
		Element:      element.Name(),
		Partition:    partition.Analyze(tr),
	}
	h := dofs.NewHandler(tr)
	h.SetStrict(ip.Strict)
	number := func() error {
		h.DistributeDofs(element)
		return nil
	}
	if md.Perf {
		if rpt.Cycles, err = countCycles(number); err != nil {
			log.Printf("cycle count unavailable: %v", err)
			err = nil
		}
	}
	if !h.IsNumbered() {
		_ = number()
	}
	rpt.NDofs = h.NDofs()
	log.Printf("numbered %d dofs: %s", rpt.NDofs, utils.GetMemUsage())

	layout := distributed.NewLayout(h)
	if err = layout.CheckPartition(); err != nil {
		return
	}
	if err = distributed.CheckBoundarySubset(h, nil, layout); err != nil {
		return
	}
	perRank := make([]*constraints.AffineConstraints, layout.NRanks())
	for r := range perRank {
		perRank[r] = constraints.New(layout.Relevant[r])
		if ip.HangingConstraints {
			if err = dofs.MakeHangingNodeConstraints(h, perRank[r]); err != nil {
				return
			}
		}
		if err = perRank[r].Close(); err != nil {
			return
		}
		var data []byte
		if data, err = layout.Relevant[r].MarshalBinary(); err != nil {
			return
		}
		rpt.Ranks = append(rpt.Ranks, RankReport{
			Rank:          r,
			Cells:         len(h.LocallyOwnedCells(r)),
			Owned:         layout.Owned[r].NElements(),
			Relevant:      layout.Relevant[r].NElements(),
			Ghosts:        layout.Ghosts(r).NElements(),
			Constraints:   perRank[r].NConstraints(),
			RelevantBytes: len(data),
		})
	}
	all := constraints.New(nil)
	if ip.HangingConstraints {
		if err = dofs.MakeHangingNodeConstraints(h, all); err != nil {
			return
		}
	}
	if err = all.Close(); err != nil {
		return
	}
	err = checkExchange(h, layout, all, perRank)
	return
}

/*
checkExchange interpolates a smooth field, makes it conforming on every rank from ghosted copies and compares the
owned values with all applied to the whole vector.
*/
func checkExchange(h *dofs.Handler, layout *distributed.Layout, all *constraints.AffineConstraints,
	perRank []*constraints.AffineConstraints) (err error) {
	var (
		ex     = distributed.NewExchanger(layout)
		serial = mat.NewVecDense(layout.NDofs, nil)
		dst    = make([]*distributed.Vector, layout.NRanks())
		src    = make([]*distributed.Vector, layout.NRanks())
	)
	field := func(p mesh.Point, c int) float64 {
		return math.Sin(3*p[0]+float64(c)) + math.Cos(2*p[1])
	}
	dofs.Interpolate(h, field, serial)
	for r := range dst {
		dst[r] = distributed.NewVector(layout, r)
		src[r] = distributed.NewGhostedVector(layout, r)
		for _, i := range layout.Owned[r].Elements() {
			dst[r].SetVec(i, serial.AtVec(i))
		}
		src[r].CopyOwned(dst[r])
	}
	if err = ex.UpdateGhosts(src); err != nil {
		return
	}
	for r, ac := range perRank {
		if err = ac.CondenseFrom(dst[r], src[r]); err != nil {
			return
		}
	}
	if err = all.Distribute(serial); err != nil {
		return
	}
	for r := range dst {
		for _, i := range layout.Owned[r].Elements() {
			if d := math.Abs(dst[r].AtVec(i) - serial.AtVec(i)); d > 1e-12 {
				return fmt.Errorf("%w: dof %d differs by %g on rank %d", distributed.ErrOwnershipInconsistent, i, d, r)
			}
		}
	}
	log.Printf("ghost exchange and constraints agree on %d dofs over %d ranks", layout.NDofs, layout.NRanks())
	return
}

func (rpt *Report) Print() {
	fmt.Printf("%s on %d active cells: %d dofs\n", rpt.Element, rpt.NActiveCells, rpt.NDofs)
	if rpt.Cycles != 0 {
		fmt.Printf("numbering took %d CPU cycles\n", rpt.Cycles)
	}
	rpt.Partition.Log()
	fmt.Printf("%6s %8s %8s %10s %8s %12s %8s\n", "rank", "cells", "owned", "relevant", "ghosts", "constraints", "bytes")
	for _, r := range rpt.Ranks {
		fmt.Printf("%6d %8d %8d %10d %8d %12d %8d\n",
			r.Rank, r.Cells, r.Owned, r.Relevant, r.Ghosts, r.Constraints, r.RelevantBytes)
	}
}
