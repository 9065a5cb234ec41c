package node

// RequestPatch carries the request fields a caller mentioned. Nil means absent.
type RequestPatch struct {
	ContentType *string `json:"contentType,omitempty"`
	QueryParams *string `json:"queryParams,omitempty"`
	Body        *string `json:"body,omitempty"`
}

// ResponsePatch carries the response fields a caller mentioned.
type ResponsePatch struct {
	Status      *string `json:"status,omitempty"`
	ContentType *string `json:"contentType,omitempty"`
	Body        *string `json:"body,omitempty"`
}

// MethodPatch is a partial MethodConfig.
type MethodPatch struct {
	Enabled  *bool          `json:"enabled,omitempty"`
	Request  *RequestPatch  `json:"request,omitempty"`
	Response *ResponsePatch `json:"response,omitempty"`
}

// MergeMethodConfig overlays patch onto existing. Fields absent from patch keep
// their existing value.
func MergeMethodConfig(existing MethodConfig, patch MethodPatch) MethodConfig {
	out := existing
	if patch.Enabled != nil {
		out.Enabled = *patch.Enabled
	}
	if p := patch.Request; p != nil {
		setIf(&out.Request.ContentType, p.ContentType)
		setIf(&out.Request.QueryParams, p.QueryParams)
		setIf(&out.Request.Body, p.Body)
	}
	if p := patch.Response; p != nil {
		setIf(&out.Response.Status, p.Status)
		setIf(&out.Response.ContentType, p.ContentType)
		setIf(&out.Response.Body, p.Body)
	}
	return out
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// IsEmpty reports whether the patch mentions no field at all.
func (p MethodPatch) IsEmpty() bool {
	return p.Enabled == nil && p.Request == nil && p.Response == nil
}

// String and Bool return pointers for building patches.
func String(v string) *string { return &v }

func Bool(v bool) *bool { return &v }
