package enums

import "fmt"

// BuilderNftType maps to the builder_nft_type_enum enum in Postgres.
type BuilderNftType string

const (
	BuilderNftTypeDefault     BuilderNftType = "default"
	BuilderNftTypeStarterPack BuilderNftType = "starter_pack"
)

var validBuilderNftTypes = []BuilderNftType{
	BuilderNftTypeDefault,
	BuilderNftTypeStarterPack,
}

func (t BuilderNftType) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known NFT series variant.
func (t BuilderNftType) IsValid() bool {
	for _, candidate := range validBuilderNftTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBuilderNftType converts raw input into BuilderNftType.
func ParseBuilderNftType(value string) (BuilderNftType, error) {
	for _, candidate := range validBuilderNftTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid builder nft type %q", value)
}
