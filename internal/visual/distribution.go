// SPDX-License-Identifier: MIT
package visual

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Distribution picks the generator for particle rest positions.
type Distribution int

const (
	Sphere  Distribution = iota // Uniform ball around the origin.
	Shell                       // Concentric orbital shells.
	Cluster                     // Small shells around several centres.
	Curtain                     // Thin vertical sheet.
)

var distributionNames = [...]string{"sphere", "shell", "cluster", "curtain"}

func (d Distribution) String() string {
	if d < 0 || int(d) >= len(distributionNames) {
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
	return distributionNames[d]
}

// ParseDistribution accepts the String form of a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	for i, name := range distributionNames {
		if strings.EqualFold(s, name) {
			return Distribution(i), nil
		}
	}
	return Sphere, fmt.Errorf("unknown distribution %q (want sphere, shell, cluster or curtain)", s)
}

// Geometry constants per distribution.
const (
	sphereRadius     = 5.0
	clusterCount     = 5
	clusterOrbit     = 3.5 // Distance of each cluster centre from the origin.
	curtainHalfWidth = 6.0
	curtainHalfTall  = 3.0
	curtainDepth     = 0.3
)

var (
	shellRadii        = [...]float64{2, 3.5, 5}
	clusterShellRadii = [...]float64{0.6, 1.2, 1.8}
)

// goldenAngle spaces phases and cluster centres without visible repeats.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// restPosition returns the rest position of particle i and the centre its
// containment is measured from.
func (d Distribution) restPosition(i int, rng *rand.Rand) (pos, centre r3.Vec) {
	switch d {
	case Shell:
		r := shellRadii[i%len(shellRadii)] + (rng.Float64()-0.5)*0.3
		return r3.Scale(r, randomDirection(rng)), r3.Vec{}
	case Cluster:
		c := clusterCentre(i % clusterCount)
		r := clusterShellRadii[rng.IntN(len(clusterShellRadii))] + (rng.Float64()-0.5)*0.2
		return r3.Add(c, r3.Scale(r, randomDirection(rng))), c
	case Curtain:
		return r3.Vec{
			X: (rng.Float64()*2 - 1) * curtainHalfWidth,
			Y: (rng.Float64()*2 - 1) * curtainHalfTall,
			Z: (rng.Float64()*2 - 1) * curtainDepth,
		}, r3.Vec{}
	default:
		r := sphereRadius * math.Cbrt(rng.Float64())
		return r3.Scale(r, randomDirection(rng)), r3.Vec{}
	}
}

// randomDirection is uniform on the unit sphere.
func randomDirection(rng *rand.Rand) r3.Vec {
	theta := rng.Float64() * 2 * math.Pi
	phi := math.Acos(2*rng.Float64() - 1)
	return r3.Vec{
		X: math.Sin(phi) * math.Cos(theta),
		Y: math.Sin(phi) * math.Sin(theta),
		Z: math.Cos(phi),
	}
}

// clusterCentre places centre k on a Fibonacci sphere of radius clusterOrbit.
func clusterCentre(k int) r3.Vec {
	y := 1 - 2*(float64(k)+0.5)/clusterCount
	r := math.Sqrt(1 - y*y)
	a := goldenAngle * float64(k)
	return r3.Scale(clusterOrbit, r3.Vec{X: r * math.Cos(a), Y: y, Z: r * math.Sin(a)})
}
