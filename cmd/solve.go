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
	"fmt"
	"io/ioutil"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/integration"
	"github.com/cfdworks/mgsolve/solver"
)

type SolveModel struct {
	GridFile string
	ICFile   string
	System   string
	Profile  bool
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Multigrid solver, reads SU2 grid files and marches to convergence",
	Long:  `Multigrid solver, reads SU2 grid files and marches to convergence`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		sm := &SolveModel{}
		if sm.GridFile, err = cmd.Flags().GetString("gridFile"); err != nil {
			panic(err)
		}
		if sm.ICFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		sm.System, _ = cmd.Flags().GetString("system")
		sm.Profile, _ = cmd.Flags().GetBool("profile")
		sp := processSolveInput(sm)
		RunSolve(sm, sp)
	},
}

func processSolveInput(sm *SolveModel) (sp *InputParameters.SolverParameters) {
	var (
		err      error
		willExit bool
	)
	if len(sm.GridFile) == 0 {
		err := fmt.Errorf("must supply a grid file (-F, --gridFile) in .su2 format")
		fmt.Printf("error: %s\n", err.Error())
		willExit = true
	}
	if len(sm.ICFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Test Case"
CFL: 3.
Minf: 0.8
Alpha: 1.25
TimeScheme: RungeKutta # or EulerExplicit, EulerImplicit, ClassicalRK4
MGLevels: 3
MGCycle: W # or V, FullMG
MGPreSmooth: [1, 2, 2, 2]
MGPostSmooth: [0, 0, 0, 0]
MGCorrecSmooth: [2]
LocalTimeStep: true
MaxIterations: 2000
ConvergenceTol: 1.e-10
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		willExit = true
	}
	if willExit {
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(sm.ICFile); err != nil {
		panic(err)
	}
	sp = &InputParameters.SolverParameters{}
	if err = sp.Parse(data); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("gridFile", "F", "", "Grid file to read in SU2 (.su2) format")
	SolveCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- CFL\n\t- MGLevels")
	SolveCmd.Flags().StringP("system", "s", "flow", "equation system to solve: flow, adjoint, heat, fea, dg")
	SolveCmd.Flags().Bool("profile", false, "write a CPU profile of the run")
}

func RunSolve(sm *SolveModel, sp *InputParameters.SolverParameters) {
	if sm.Profile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}
	sp.Print()

	fine, err := geometry.ReadSU2(sm.GridFile)
	if err != nil {
		panic(err)
	}
	nParallel := sp.NParallel
	if nParallel == 0 {
		nParallel = runtime.NumCPU()
	}
	mg := geometry.NewMultigridGeometry(fine, sp.MGLevels+1, nParallel)
	fmt.Printf("Read %d points, built %d mesh levels, %d goroutines\n",
		fine.NPoint, mg.NumLevels(), nParallel)

	var (
		h     = integration.NewHierarchy(mg, sp)
		state = integration.NewRunState(sp, mg.NumLevels())
	)
	switch strings.ToLower(sm.System) {
	case "flow":
		runFlow(h, sp, state)
	case "adjoint":
		h.AddAdjoint(sp)
		runMultigrid(h, sp, state, integration.RuntimeAdjFlowSys)
	case "heat":
		h.AddHeat(sp)
		runMultigrid(h, sp, state, integration.RuntimeHeatSys)
	case "fea":
		h.AddStructural(sp)
		runStructural(h, sp, state)
	case "dg":
		runDG(h, sp, state)
	default:
		fmt.Printf("unknown system %q\n", sm.System)
		os.Exit(1)
	}
}

// runFlow marches the flow system with multigrid; a turbulent case advances
// the transport equation on the finest level after each cycle and pushes it
// down the hierarchy.
func runFlow(h *integration.Hierarchy, sp *InputParameters.SolverParameters, state *integration.RunState) {
	var (
		mgi = integration.NewMultiGridIntegration(state)
		sgi = integration.NewSingleGridIntegration(state)
	)
	for iter := 0; iter < sp.MaxIterations; iter++ {
		mgi.Iteration(h, sp, integration.RuntimeFlowSys, iter)
		if sp.Turbulent {
			sgi.Iteration(h, sp, integration.RuntimeTurbSys, iter)
		}
		mgi.PrintMonitorLine(integration.RuntimeFlowSys, iter, h.Solver(integration.RuntimeFlowSys, state.FinestMesh))
		if state.Convergence || state.StopCalc {
			break
		}
	}
	printFlowSummary(h, state)
}

func runMultigrid(h *integration.Hierarchy, sp *InputParameters.SolverParameters,
	state *integration.RunState, sys integration.EqSystem) {
	mgi := integration.NewMultiGridIntegration(state)
	for iter := 0; iter < sp.MaxIterations; iter++ {
		mgi.Iteration(h, sp, sys, iter)
		mgi.PrintMonitorLine(sys, iter, h.Solver(sys, state.FinestMesh))
		if state.Convergence || state.StopCalc {
			break
		}
	}
}

func runStructural(h *integration.Hierarchy, sp *InputParameters.SolverParameters, state *integration.RunState) {
	sti := integration.NewStructuralIntegration(state)
	for iter := 0; iter < sp.MaxIterations; iter++ {
		sti.Iteration(h, sp, iter)
		sti.PrintMonitorLine(integration.RuntimeFEASys, iter, h.Solver(integration.RuntimeFEASys, 0))
		if state.Convergence || state.StopCalc {
			break
		}
	}
}

func runDG(h *integration.Hierarchy, sp *InputParameters.SolverParameters, state *integration.RunState) {
	// The time-accurate path replaces the finest flow solver with its
	// DG-capable extension
	h.Solvers[integration.RuntimeFlowSys][0] = solver.NewDGFlowSolver(h.Geom.At(0), sp)
	dgi := integration.NewFEMDGIntegration(state)
	for iter := 0; iter < sp.MaxIterations; iter++ {
		dgi.Iteration(h, sp, integration.RuntimeFlowSys, iter)
		dgi.PrintMonitorLine(integration.RuntimeFlowSys, iter, h.Solver(integration.RuntimeFlowSys, 0))
		if state.Convergence || state.StopCalc {
			break
		}
	}
}

func printFlowSummary(h *integration.Hierarchy, state *integration.RunState) {
	if fs, ok := h.Solver(integration.RuntimeFlowSys, 0).(*solver.FlowSolver); ok {
		fmt.Printf("CL %10.6f  CD %10.6f  CMz %10.6f\n", fs.CL, fs.CD, fs.CMz)
	}
	fmt.Printf("Converged: %v\n", state.Convergence)
}
