package enum

// CartEventType 表示購物車變更事件的類型
type CartEventType string

const (
	CartEventTypeProductAdded       CartEventType = "product.added"
	CartEventTypeProductIncremented CartEventType = "product.incremented"
	CartEventTypeProductDecremented CartEventType = "product.decremented"
	CartEventTypeProductRemoved     CartEventType = "product.removed"
	CartEventTypeCartCleared        CartEventType = "cart.cleared"
)

func (t CartEventType) Valid() bool {
	switch t {
	case CartEventTypeProductAdded,
		CartEventTypeProductIncremented,
		CartEventTypeProductDecremented,
		CartEventTypeProductRemoved,
		CartEventTypeCartCleared:
		return true
	}
	return false
}
