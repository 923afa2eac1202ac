package fetch

// continentFor resolves the subdirectory SRTM/ardupilot-style mirrors use
// to organize tiles, keyed by the tile's south-west corner (§6 "URL
// template"). Ranges follow the de-facto ardupilot/viewfinderpanoramas
// layout.
func continentFor(latFloor, lonFloor int) string {
	switch {
	case lonFloor >= -25 && lonFloor < 60 && latFloor >= -35 && latFloor < 38:
		return "Africa"
	case lonFloor >= 110 && lonFloor < 180 && latFloor >= -50 && latFloor < -10:
		return "Australia"
	case lonFloor >= -20 && lonFloor < 180 && latFloor >= 38 && latFloor < 61:
		return "Eurasia"
	case lonFloor >= 60 && lonFloor < 180 && latFloor >= -11 && latFloor < 38:
		return "Eurasia"
	case lonFloor >= -170 && lonFloor < -50 && latFloor >= 15 && latFloor < 61:
		return "North_America"
	case lonFloor >= -85 && lonFloor < -30 && latFloor >= -60 && latFloor < 15:
		return "South_America"
	default:
		return "Islands"
	}
}
