package redisx

import "time"

// Cache of serialized order responses: order_status:{order_id}
const KeyOrderStatus = "order_status:%d"

var TTLStatusCache = 5 * time.Minute
