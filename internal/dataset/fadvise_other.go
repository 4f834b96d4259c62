//go:build !linux

package dataset

import "os"

func adviseSequential(*os.File) {}
