package shared

import "fmt"

// TokenRefreshLockKey builds the redis key guarding a provider's token refresh.
func TokenRefreshLockKey(provider string) string {
	return fmt.Sprintf("storebridge:oauth:%s:refresh-lock", provider)
}
