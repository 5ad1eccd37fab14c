package geometry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

/*
	ReadSU2 reads a 2D mesh in SU2 native format and builds the vertex-
	centered finite-volume dual: per-point dual volumes, unique edges with
	median-dual face normals, and boundary markers classified from the
	marker tags.
*/
func ReadSU2(filename string) (*MeshLevel, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var (
		scanner = bufio.NewScanner(file)
		ndime   int
		coords  [][2]float64
		elems   [][]int
		markers []Marker
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments
		if strings.HasPrefix(line, "%") || line == "" {
			continue
		}

		if strings.HasPrefix(line, "NDIME=") {
			fmt.Sscanf(line, "NDIME=%d", &ndime)
			if ndime != 2 {
				return nil, fmt.Errorf("only 2D meshes are supported, got NDIME=%d", ndime)
			}

		} else if strings.HasPrefix(line, "NELEM=") {
			var nelem int
			fmt.Sscanf(line, "NELEM=%d", &nelem)
			elems = make([][]int, 0, nelem)
			for i := 0; i < nelem; i++ {
				scanner.Scan()
				fields := strings.Fields(scanner.Text())
				if len(fields) < 2 {
					continue
				}
				su2Type, _ := strconv.Atoi(fields[0])
				var numNodes int
				switch su2Type {
				case 5: // Triangle
					numNodes = 3
				case 9: // Quad
					numNodes = 4
				default:
					continue // Skip anything but 2D surface elements
				}
				if len(fields) < 1+numNodes {
					return nil, fmt.Errorf("element %d: expected %d nodes, got %d fields", i, numNodes, len(fields)-1)
				}
				elem := make([]int, numNodes)
				for n := 0; n < numNodes; n++ {
					elem[n], _ = strconv.Atoi(fields[1+n])
				}
				elems = append(elems, elem)
			}

		} else if strings.HasPrefix(line, "NPOIN=") {
			var npoin int
			fmt.Sscanf(line, "NPOIN=%d", &npoin)
			coords = make([][2]float64, npoin)
			for i := 0; i < npoin; i++ {
				scanner.Scan()
				fields := strings.Fields(scanner.Text())
				if len(fields) < 2 {
					return nil, fmt.Errorf("point %d: malformed coordinate line", i)
				}
				x, _ := strconv.ParseFloat(fields[0], 64)
				y, _ := strconv.ParseFloat(fields[1], 64)
				coords[i] = [2]float64{x, y}
			}

		} else if strings.HasPrefix(line, "NMARK=") {
			var nmark int
			fmt.Sscanf(line, "NMARK=%d", &nmark)
			for im := 0; im < nmark; im++ {
				var (
					tag    string
					nMElem int
				)
				for scanner.Scan() {
					mline := strings.TrimSpace(scanner.Text())
					if strings.HasPrefix(mline, "MARKER_TAG=") {
						tag = strings.TrimSpace(strings.TrimPrefix(mline, "MARKER_TAG="))
					} else if strings.HasPrefix(mline, "MARKER_ELEMS=") {
						fmt.Sscanf(mline, "MARKER_ELEMS=%d", &nMElem)
						break
					}
				}
				pointSet := make(map[int]bool)
				order := make([]int, 0)
				for i := 0; i < nMElem; i++ {
					scanner.Scan()
					fields := strings.Fields(scanner.Text())
					if len(fields) < 3 {
						continue
					}
					// Only line elements (type 3) bound a 2D domain
					if et, _ := strconv.Atoi(fields[0]); et != 3 {
						continue
					}
					for _, f := range fields[1:3] {
						p, _ := strconv.Atoi(f)
						if !pointSet[p] {
							pointSet[p] = true
							order = append(order, p)
						}
					}
				}
				markers = append(markers, Marker{
					Name:   tag,
					Kind:   NewBCKind(tag),
					Points: order,
				})
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if len(coords) == 0 || len(elems) == 0 {
		return nil, fmt.Errorf("mesh file %s: no points or elements found", filename)
	}
	return buildDual(coords, elems, markers), nil
}

// buildDual derives the finite-volume dual mesh from primal 2D elements.
func buildDual(coords [][2]float64, elems [][]int, markers []Marker) (ml *MeshLevel) {
	nPoint := len(coords)
	ml = &MeshLevel{
		NDim:         2,
		NPoint:       nPoint,
		NPointDomain: nPoint,
		Coord:        coords,
		Volume:       make([]float64, nPoint),
		Markers:      markers,
	}

	type edgeKey struct{ a, b int }
	edgeIndex := make(map[edgeKey]int)

	edgeOf := func(i, j int) int {
		a, b := i, j
		if a > b {
			a, b = b, a
		}
		key := edgeKey{a, b}
		idx, exists := edgeIndex[key]
		if !exists {
			idx = len(ml.Edges)
			edgeIndex[key] = idx
			ml.Edges = append(ml.Edges, [2]int{a, b})
			ml.EdgeNormal = append(ml.EdgeNormal, [2]float64{})
		}
		return idx
	}

	for _, elem := range elems {
		nn := len(elem)
		// Element centroid and area (shoelace)
		var cx, cy, area float64
		for n := 0; n < nn; n++ {
			p0, p1 := coords[elem[n]], coords[elem[(n+1)%nn]]
			cx += p0[0]
			cy += p0[1]
			area += p0[0]*p1[1] - p1[0]*p0[1]
		}
		cx /= float64(nn)
		cy /= float64(nn)
		area *= 0.5
		if area < 0 {
			area = -area
		}

		// Dual volume contribution, element area split evenly over vertices
		for _, p := range elem {
			ml.Volume[p] += area / float64(nn)
		}

		// Median-dual face per element edge: midpoint to centroid, rotated
		for n := 0; n < nn; n++ {
			i, j := elem[n], elem[(n+1)%nn]
			idx := edgeOf(i, j)
			mx := 0.5 * (coords[i][0] + coords[j][0])
			my := 0.5 * (coords[i][1] + coords[j][1])
			tx, ty := cx-mx, cy-my
			nx, ny := ty, -tx
			// Orient the normal with the stored edge direction a -> b
			a := ml.Edges[idx][0]
			dx := coords[ml.Edges[idx][1]][0] - coords[a][0]
			dy := coords[ml.Edges[idx][1]][1] - coords[a][1]
			if nx*dx+ny*dy < 0 {
				nx, ny = -nx, -ny
			}
			ml.EdgeNormal[idx][0] += nx
			ml.EdgeNormal[idx][1] += ny
		}
	}
	return
}
