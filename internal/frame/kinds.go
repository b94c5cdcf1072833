package frame

import "github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"

// KindFor returns the storage kind of a schema column type.
func KindFor(t types.ColumnType) Kind {
	switch t {
	case types.TypeInteger:
		return KindInt
	case types.TypeFloat:
		return KindFloat
	case types.TypeDate:
		return KindDate
	case "":
		return KindUnknown
	default:
		return KindString
	}
}
