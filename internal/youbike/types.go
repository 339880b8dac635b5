package youbike

// StationInfo mirrors one entry of the station roster. It is the identity
// record for a station; live availability lives in VehicleInfo.
type StationInfo struct {
	StationNo string  `json:"station_no"`
	Name      string  `json:"name_tw"`
	District  string  `json:"district_tw"`
	Address   string  `json:"address_tw"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// SameStation reports whether two records describe the same station.
func (s StationInfo) SameStation(other StationInfo) bool {
	return s.StationNo == other.StationNo
}

// VehicleInfo is the live availability of one station from /tw2/parkingInfo.
type VehicleInfo struct {
	StationNo   string        `json:"station_no"`
	EmptySpaces int           `json:"empty_spaces"`
	Detail      VehicleDetail `json:"available_spaces_detail"`
}

// VehicleDetail splits available bikes by type.
type VehicleDetail struct {
	Standard int `json:"yb2"`
	Electric int `json:"eyb"`
}

// parkingInfoRequest is the POST body for /tw2/parkingInfo.
type parkingInfoRequest struct {
	StationNo []string `json:"station_no"`
}

// parkingInfoResponse mirrors the /tw2/parkingInfo envelope.
type parkingInfoResponse struct {
	RetVal struct {
		Data []VehicleInfo `json:"data"`
	} `json:"retVal"`
}

// StationIDs returns the station numbers of stations in order.
func StationIDs(stations []StationInfo) []string {
	if len(stations) == 0 {
		return nil
	}
	ids := make([]string, len(stations))
	for i, s := range stations {
		ids[i] = s.StationNo
	}
	return ids
}
