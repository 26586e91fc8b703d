package checkmk

// versionResponse is the /version payload of the REST API.
type versionResponse struct {
	Versions struct {
		Checkmk string `json:"checkmk"`
	} `json:"versions"`
}

// hostCollection is the host_config collection payload.
type hostCollection struct {
	Value []hostObject `json:"value"`
}

type hostObject struct {
	ID         string `json:"id"`
	Extensions struct {
		Folder     string         `json:"folder"`
		Attributes map[string]any `json:"attributes"`
	} `json:"extensions"`
}

// folderCollection is the folder_config collection payload.
type folderCollection struct {
	Value []folderObject `json:"value"`
}

type folderObject struct {
	Extensions struct {
		Path string `json:"path"`
	} `json:"extensions"`
}

// tagGroupCollection is the host_tag_group collection payload.
type tagGroupCollection struct {
	Value []tagGroupObject `json:"value"`
}

type tagGroupObject struct {
	ID         string `json:"id"`
	Extensions struct {
		Tags []tagChoice `json:"tags"`
	} `json:"extensions"`
}

type tagChoice struct {
	ID string `json:"id"`
}

// backgroundJob is an /objects/background_job payload.
type backgroundJob struct {
	Extensions struct {
		Active bool `json:"active"`
	} `json:"extensions"`
}

// restProblem is the REST API's error payload.
type restProblem struct {
	Title  string         `json:"title"`
	Detail string         `json:"detail"`
	Fields map[string]any `json:"fields"`
}

// legacyEnvelope wraps every legacy web-API response.
type legacyEnvelope struct {
	Result     any `json:"result"`
	ResultCode int `json:"result_code"`
}

// legacyHostResult is the add_hosts / edit_hosts result shape.
type legacyHostResult struct {
	FailedHosts    map[string]string `json:"failed_hosts"`
	SucceededHosts []string          `json:"succeeded_hosts"`
}

// legacyHost is one host entry of a get_all_hosts result.
type legacyHost struct {
	Attributes map[string]any `json:"attributes"`
	Path       string         `json:"path"`
}

// legacyTagResponse is the get_hosttags result shape.
type legacyTagResponse struct {
	TagGroups []legacyTagGroup `json:"tag_groups"`
	Builtin   struct {
		TagGroups []legacyTagGroup `json:"tag_groups"`
	} `json:"builtin"`
}

type legacyTagGroup struct {
	ID   string      `json:"id"`
	Tags []tagChoice `json:"tags"`
}

// legacyDiscoveryStatus is the bulk_discovery_status result shape.
type legacyDiscoveryStatus struct {
	IsActive bool `json:"is_active"`
}
