package logging

import "log/slog"

// Field names shared by every component so log queries stay uniform.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldEmail     = "email"
	FieldRole      = "role"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldTokenID   = "token_id"
	FieldReason    = "reason"
	FieldAssetID   = "asset_id"
	FieldBlobKey   = "blob_key"
	FieldEventID   = "event_id"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

func Email(email string) slog.Attr {
	return slog.String(FieldEmail, email)
}

func Role(role string) slog.Attr {
	return slog.String(FieldRole, role)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration is expressed in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns an attribute for err; a nil error is logged as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func TokenID(id string) slog.Attr {
	return slog.String(FieldTokenID, id)
}

func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

func AssetID(id int64) slog.Attr {
	return slog.Int64(FieldAssetID, id)
}

func BlobKey(key string) slog.Attr {
	return slog.String(FieldBlobKey, key)
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}
