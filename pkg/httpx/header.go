package httpx

const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderUserAgent     = "User-Agent"
	HeaderAccept        = "Accept"
	HeaderXForwardedFor = "X-Forwarded-For"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeHTML = "text/html"
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
)
