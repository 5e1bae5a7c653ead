package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type DofParameters struct {
	Title              string `yaml:"Title"`
	Dimension          int    `yaml:"Dimension"`
	Subdivisions       int    `yaml:"Subdivisions"`
	GlobalRefinements  int    `yaml:"GlobalRefinements"`
	LocalRefinements   int    `yaml:"LocalRefinements"` // Refine the cell at the origin this many times
	PolynomialOrder    int    `yaml:"PolynomialOrder"`
	Components         int    `yaml:"Components"`
	Ranks              int    `yaml:"Ranks"`
	Partitioner        string `yaml:"Partitioner"` // "contiguous" or "metis"
	HangingConstraints bool   `yaml:"HangingConstraints"`
	Strict             bool   `yaml:"Strict"`
}

func NewDofParameters() *DofParameters {
	return &DofParameters{
		Title:              "Unit hypercube",
		Dimension:          2,
		Subdivisions:       4,
		PolynomialOrder:    1,
		Components:         1,
		Ranks:              1,
		Partitioner:        "contiguous",
		HangingConstraints: true,
	}
}

func (ip *DofParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	return ip.Validate()
}

func (ip *DofParameters) Validate() error {
	switch {
	case ip.Dimension != 1 && ip.Dimension != 2:
		return fmt.Errorf("dimension %d not supported, use 1 or 2", ip.Dimension)
	case ip.Subdivisions < 1:
		return fmt.Errorf("need at least one subdivision, have %d", ip.Subdivisions)
	case ip.GlobalRefinements < 0 || ip.LocalRefinements < 0:
		return fmt.Errorf("refinement counts must not be negative")
	case ip.PolynomialOrder < 1:
		return fmt.Errorf("polynomial order %d must be at least 1", ip.PolynomialOrder)
	case ip.Components < 1:
		return fmt.Errorf("need at least one component, have %d", ip.Components)
	case ip.Ranks < 1:
		return fmt.Errorf("need at least one rank, have %d", ip.Ranks)
	case ip.Partitioner != "contiguous" && ip.Partitioner != "metis":
		return fmt.Errorf("unknown partitioner %q", ip.Partitioner)
	}
	return nil
}

func (ip *DofParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Dimension\n", ip.Dimension)
	fmt.Printf("[%d]\t\t\t\t= Subdivisions\n", ip.Subdivisions)
	fmt.Printf("[%d/%d]\t\t\t\t= Global/Local Refinements\n", ip.GlobalRefinements, ip.LocalRefinements)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Order\n", ip.PolynomialOrder)
	fmt.Printf("[%d]\t\t\t\t= Components\n", ip.Components)
	fmt.Printf("[%d]\t\t\t\t= Ranks\n", ip.Ranks)
	fmt.Printf("[%s]\t\t\t= Partitioner\n", ip.Partitioner)
	fmt.Printf("[%v]\t\t\t\t= Hanging Node Constraints\n", ip.HangingConstraints)
	fmt.Printf("[%v]\t\t\t\t= Strict\n", ip.Strict)
}
