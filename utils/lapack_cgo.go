//go:build cgo && blas
// +build cgo,blas

package utils

/*
#cgo CFLAGS: -march=native -mavx -mavx2
#cgo LDFLAGS: -lopenblas -llapacke -lgfortran -lm -lpthread
#include <cblas.h>
#include <lapacke.h>
*/
import "C"

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// Building with -tags blas swaps the gonum BLAS backend for the netlib
// bindings over the system OpenBLAS.
func init() {
	blas64.Use(netblas.Implementation{})
	fmt.Println("mgsolve: BLAS backend switched to netlib/OpenBLAS")
}
