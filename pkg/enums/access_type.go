package enums

import "fmt"

// AccessType records how a course entitlement was obtained.
type AccessType string

const (
	AccessTypePurchased    AccessType = "purchased"
	AccessTypeGifted       AccessType = "gifted"
	AccessTypePromotional  AccessType = "promotional"
	AccessTypeAdminGranted AccessType = "admin_granted"
)

var validAccessTypes = []AccessType{
	AccessTypePurchased,
	AccessTypeGifted,
	AccessTypePromotional,
	AccessTypeAdminGranted,
}

func (a AccessType) IsValid() bool {
	for _, candidate := range validAccessTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseAccessType(value string) (AccessType, error) {
	for _, candidate := range validAccessTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid access type %q", value)
}
