package utils

func Contains[T comparable](arr []T, item T) bool {
	for _, i := range arr {
		if i == item {
			return true
		}
	}

	return false
}

func RemoveAt[T any](arr []T, idx int) []T {
	result := make([]T, 0, len(arr)-1)
	result = append(result, arr[:idx]...)

	return append(result, arr[idx+1:]...)
}
