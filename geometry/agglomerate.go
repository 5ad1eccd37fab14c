package geometry

/*
	Agglomerate builds the next coarser level by greedy control-volume
	agglomeration: each unassigned point seeds a coarse point and absorbs its
	unassigned neighbors. Boundary points are seeded first and only merge with
	points under the same marker so that wall classification survives
	coarsening. The result satisfies the partition invariant: every fine
	point belongs to exactly one coarse parent and the coarse volume is the
	sum of the children volumes.
*/
func Agglomerate(fine *MeshLevel) (coarse *MeshLevel) {
	var (
		parent   = make([]int, fine.NPoint)
		markerOf = make([]int, fine.NPoint)
		children [][]int
	)
	for i := range parent {
		parent[i] = -1
		markerOf[i] = -1
	}
	for im, marker := range fine.Markers {
		for _, p := range marker.Points {
			if markerOf[p] == -1 {
				markerOf[p] = im
			}
		}
	}

	seed := func(iPoint int) {
		coarsePoint := len(children)
		group := []int{iPoint}
		parent[iPoint] = coarsePoint
		for _, nbr := range fine.AdjPoints[iPoint] {
			if parent[nbr] == -1 && markerOf[nbr] == markerOf[iPoint] {
				parent[nbr] = coarsePoint
				group = append(group, nbr)
			}
		}
		children = append(children, group)
	}

	// Boundary sweep first, then interior
	for _, marker := range fine.Markers {
		for _, p := range marker.Points {
			if parent[p] == -1 {
				seed(p)
			}
		}
	}
	for iPoint := 0; iPoint < fine.NPoint; iPoint++ {
		if parent[iPoint] == -1 {
			seed(iPoint)
		}
	}

	nCoarse := len(children)
	coarse = &MeshLevel{
		NDim:         fine.NDim,
		NPoint:       nCoarse,
		NPointDomain: nCoarse,
		Coord:        make([][2]float64, nCoarse),
		Volume:       make([]float64, nCoarse),
		Children:     children,
	}
	if fine.GridVel != nil {
		coarse.GridVel = make([][2]float64, nCoarse)
	}

	// Volume sums and volume-weighted centroids / grid velocities
	for coarsePoint, group := range children {
		var vol float64
		for _, finePoint := range group {
			vc := fine.Volume[finePoint]
			vol += vc
			coarse.Coord[coarsePoint][0] += fine.Coord[finePoint][0] * vc
			coarse.Coord[coarsePoint][1] += fine.Coord[finePoint][1] * vc
			if fine.GridVel != nil {
				coarse.GridVel[coarsePoint][0] += fine.GridVel[finePoint][0] * vc
				coarse.GridVel[coarsePoint][1] += fine.GridVel[finePoint][1] * vc
			}
		}
		coarse.Volume[coarsePoint] = vol
		coarse.Coord[coarsePoint][0] /= vol
		coarse.Coord[coarsePoint][1] /= vol
		if fine.GridVel != nil {
			coarse.GridVel[coarsePoint][0] /= vol
			coarse.GridVel[coarsePoint][1] /= vol
		}
	}

	// Coarse edges: fine edges crossing agglomerates, normals accumulated
	type edgeKey struct{ a, b int }
	edgeIndex := make(map[edgeKey]int)
	for ie, e := range fine.Edges {
		pa, pb := parent[e[0]], parent[e[1]]
		if pa == pb {
			continue
		}
		sign := 1.0
		if pa > pb {
			pa, pb = pb, pa
			sign = -1.0
		}
		key := edgeKey{pa, pb}
		idx, exists := edgeIndex[key]
		if !exists {
			idx = len(coarse.Edges)
			edgeIndex[key] = idx
			coarse.Edges = append(coarse.Edges, [2]int{pa, pb})
			coarse.EdgeNormal = append(coarse.EdgeNormal, [2]float64{})
		}
		coarse.EdgeNormal[idx][0] += sign * fine.EdgeNormal[ie][0]
		coarse.EdgeNormal[idx][1] += sign * fine.EdgeNormal[ie][1]
	}

	// Marker membership follows the seed point of each agglomerate
	coarse.Markers = make([]Marker, len(fine.Markers))
	for im, marker := range fine.Markers {
		coarse.Markers[im] = Marker{Name: marker.Name, Kind: marker.Kind}
	}
	for coarsePoint, group := range children {
		if im := markerOf[group[0]]; im != -1 {
			coarse.Markers[im].Points = append(coarse.Markers[im].Points, coarsePoint)
		}
	}
	return
}
