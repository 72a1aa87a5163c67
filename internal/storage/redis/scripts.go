package redis

const (
	// replaceTrackingScript atomically swaps the whole tracking hash
	replaceTrackingScript = `
local tracking_key = KEYS[1]   -- {prefix}:tracking
local marker_key = KEYS[2]     -- {prefix}:tracking:written

-- ARGV holds host, json pairs
redis.call('DEL', tracking_key)
for i = 1, #ARGV, 2 do
  redis.call('HSET', tracking_key, ARGV[i], ARGV[i + 1])
end

-- An empty hash does not exist in Redis, so remember that a write happened
redis.call('SET', marker_key, '1')

return 'OK'
`

	// replaceBlockedScript atomically swaps the blocked sites set
	replaceBlockedScript = `
local blocked_key = KEYS[1]    -- {prefix}:blocked_sites
local marker_key = KEYS[2]     -- {prefix}:blocked_sites:written

redis.call('DEL', blocked_key)
for i = 1, #ARGV do
  redis.call('SADD', blocked_key, ARGV[i])
end

redis.call('SET', marker_key, '1')

return 'OK'
`
)
