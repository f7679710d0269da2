package syncer

import (
	"dexIngest/internal/model"
)

func str(col, path string) Field  { return Field{Column: col, Path: path, Kind: KindString} }
func addr(col, path string) Field { return Field{Column: col, Path: path, Kind: KindAddress} }
func dec(col, path string) Field  { return Field{Column: col, Path: path, Kind: KindDecimal} }
func num(col, path string) Field  { return Field{Column: col, Path: path, Kind: KindInt} }
func flag(col, path string) Field { return Field{Column: col, Path: path, Kind: KindBool} }

var transactionFields = []Field{
	num("block_number", "blockNumber"),
	num("timestamp", "timestamp"),
}

var embeddedTransaction = Embedded{Path: "transaction", Table: "transactions", Fields: transactionFields}

var tokenSeriesFields = []Field{
	num("period_start_unix", "periodStartUnix"),
	addr("token", "token.id"),
	dec("volume", "volume"),
	dec("volume_usd", "volumeUSD"),
	dec("untracked_volume_usd", "untrackedVolumeUSD"),
	dec("total_value_locked", "totalValueLocked"),
	dec("total_value_locked_usd", "totalValueLockedUSD"),
	dec("price_usd", "priceUSD"),
	dec("fees_usd", "feesUSD"),
	dec("open", "open"),
	dec("high", "high"),
	dec("low", "low"),
	dec("close", "close"),
}

// Entities is the catalogue of mirrored entity types in sync order.
var Entities = []Descriptor{
	{
		Name:       "uniswapFactories",
		Table:      "uniswap_factories",
		Pagination: Offset,
		Fields: []Field{
			num("pair_count", "pairCount"),
			dec("total_volume_usd", "totalVolumeUSD"),
			dec("total_volume_eth", "totalVolumeETH"),
			dec("untracked_volume_usd", "untrackedVolumeUSD"),
			dec("total_liquidity_usd", "totalLiquidityUSD"),
			dec("total_liquidity_eth", "totalLiquidityETH"),
			num("tx_count", "txCount"),
		},
	},
	{
		Name:       "bundles",
		Table:      "bundles",
		Pagination: Offset,
		Fields:     []Field{dec("eth_price", "ethPrice")},
	},
	{
		Name:       "tokens",
		Table:      "tokens",
		Pagination: KeysetID,
		Fields: []Field{
			str("symbol", "symbol"),
			str("name", "name"),
			{Column: "decimals", Path: "decimals", Kind: KindIntOrZero},
			dec("total_supply", "totalSupply"),
			dec("trade_volume", "tradeVolume"),
			dec("trade_volume_usd", "tradeVolumeUSD"),
			dec("untracked_volume_usd", "untrackedVolumeUSD"),
			num("tx_count", "txCount"),
			dec("total_liquidity", "totalLiquidity"),
			dec("derived_eth", "derivedETH"),
		},
	},
	{
		Name:        "pairs",
		Table:       "pairs",
		Pagination:  KeysetNumeric,
		MarkerField: "createdAtTimestamp",
		MarkerType:  "BigInt",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			addr("token0", "token0.id"),
			addr("token1", "token1.id"),
			dec("reserve0", "reserve0"),
			dec("reserve1", "reserve1"),
			dec("total_supply", "totalSupply"),
			dec("reserve_eth", "reserveETH"),
			dec("reserve_usd", "reserveUSD"),
			dec("tracked_reserve_eth", "trackedReserveETH"),
			dec("token0_price", "token0Price"),
			dec("token1_price", "token1Price"),
			dec("volume_token0", "volumeToken0"),
			dec("volume_token1", "volumeToken1"),
			dec("volume_usd", "volumeUSD"),
			dec("untracked_volume_usd", "untrackedVolumeUSD"),
			num("tx_count", "txCount"),
			num("liquidity_provider_count", "liquidityProviderCount"),
			num("created_at_timestamp", "createdAtTimestamp"),
			num("created_at_block_number", "createdAtBlockNumber"),
		},
	},
	{
		Name:       "users",
		Table:      "users",
		Pagination: KeysetID,
	},
	{
		Name:        "transactions",
		Table:       "transactions",
		Pagination:  KeysetNumeric,
		MarkerField: "timestamp",
		MarkerType:  "BigInt",
		Marker:      MarkerTimestamp,
		Fields:      transactionFields,
	},
	{
		Name:       "pairTokenLookups",
		Table:      "pair_token_lookups",
		Pagination: KeysetID,
		Fields:     []Field{addr("pair", "pair.id")},
	},
	{
		Name:        "swaps",
		Table:       "swaps",
		Pagination:  KeysetNumeric,
		MarkerField: "timestamp",
		MarkerType:  "BigInt",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			str("transaction", "transaction.id"),
			num("timestamp", "timestamp"),
			addr("pair", "pair.id"),
			addr("sender", "sender"),
			addr("from_address", "from"),
			addr("to_address", "to"),
			dec("amount0_in", "amount0In"),
			dec("amount1_in", "amount1In"),
			dec("amount0_out", "amount0Out"),
			dec("amount1_out", "amount1Out"),
			num("log_index", "logIndex"),
			dec("amount_usd", "amountUSD"),
		},
		Embedded: []Embedded{embeddedTransaction},
	},
	{
		Name:        "mints",
		Table:       "mints",
		Pagination:  KeysetNumeric,
		MarkerField: "timestamp",
		MarkerType:  "BigInt",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			str("transaction", "transaction.id"),
			num("timestamp", "timestamp"),
			addr("pair", "pair.id"),
			addr("to_address", "to"),
			dec("liquidity", "liquidity"),
			addr("sender", "sender"),
			dec("amount0", "amount0"),
			dec("amount1", "amount1"),
			num("log_index", "logIndex"),
			dec("amount_usd", "amountUSD"),
			addr("fee_to", "feeTo"),
			dec("fee_liquidity", "feeLiquidity"),
		},
		Embedded: []Embedded{embeddedTransaction},
	},
	{
		Name:        "burns",
		Table:       "burns",
		Pagination:  KeysetNumeric,
		MarkerField: "timestamp",
		MarkerType:  "BigInt",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			str("transaction", "transaction.id"),
			num("timestamp", "timestamp"),
			addr("pair", "pair.id"),
			dec("liquidity", "liquidity"),
			addr("sender", "sender"),
			dec("amount0", "amount0"),
			dec("amount1", "amount1"),
			addr("to_address", "to"),
			num("log_index", "logIndex"),
			dec("amount_usd", "amountUSD"),
			flag("needs_complete", "needsComplete"),
			addr("fee_to", "feeTo"),
			dec("fee_liquidity", "feeLiquidity"),
		},
		Embedded: []Embedded{embeddedTransaction},
	},
	{
		Name:        "bridgeTransfers",
		Table:       "bridge_transfers",
		Pagination:  KeysetNumeric,
		MarkerField: "blockNumber",
		MarkerType:  "BigInt",
		Marker:      MarkerBlock,
		Fields: []Field{
			str("tx_hash", "txHash"),
			num("block_number", "blockNumber"),
			num("timestamp", "timestamp"),
			str("message_id", "messageId"),
			addr("sender", "sender"),
			addr("token", "token"),
			addr("pool", "pool"),
			dec("amount", "amount"),
			str("dst_selector", "dstSelector"),
			str("receiver_chain_name", "receiverChainName"),
			addr("receiver", "receiver"),
			flag("pay_in_link", "payInLink"),
			dec("ccip_fee", "ccipFee"),
			dec("service_fee_paid", "serviceFeePaid"),
		},
	},
	{
		Name:        "bridgeConfigEvents",
		Table:       "bridge_config_events",
		Pagination:  KeysetNumeric,
		MarkerField: "blockNumber",
		MarkerType:  "BigInt",
		Marker:      MarkerBlock,
		Fields: []Field{
			str("event_name", "eventName"),
			addr("token", "token"),
			addr("pool", "pool"),
			dec("min_amount", "minAmount"),
			dec("max_amount", "maxAmount"),
			flag("native_allowed", "nativeAllowed"),
			flag("link_allowed", "linkAllowed"),
			dec("new_fee", "newFee"),
			addr("new_collector", "newCollector"),
			num("block_number", "blockNumber"),
			num("timestamp", "timestamp"),
			str("transaction_hash", "transactionHash"),
		},
	},
	{
		Name:        "uniswapDayDatas",
		Table:       "uniswap_day_data",
		Pagination:  KeysetNumeric,
		MarkerField: "date",
		MarkerType:  "Int",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			num("date", "date"),
			dec("daily_volume_eth", "dailyVolumeETH"),
			dec("daily_volume_usd", "dailyVolumeUSD"),
			dec("daily_volume_untracked", "dailyVolumeUntracked"),
			dec("total_volume_eth", "totalVolumeETH"),
			dec("total_volume_usd", "totalVolumeUSD"),
			dec("total_liquidity_eth", "totalLiquidityETH"),
			dec("total_liquidity_usd", "totalLiquidityUSD"),
			num("tx_count", "txCount"),
		},
	},
	{
		Name:       "tokenMinuteDatas",
		Table:      "token_minute_data",
		Pagination: KeysetID,
		Endpoint:   EndpointV2Tokens,
		Fields:     tokenSeriesFields,
	},
	{
		Name:       "tokenHourDatas",
		Table:      "token_hour_data",
		Pagination: KeysetID,
		Endpoint:   EndpointV2Tokens,
		Fields:     tokenSeriesFields,
	},
	{
		Name:       "tokenDayDatas",
		Table:      "token_day_data",
		Pagination: KeysetID,
		Endpoint:   EndpointV2Tokens,
		Fields: []Field{
			num("date", "date"),
			addr("token", "token.id"),
			dec("daily_volume_token", "dailyVolumeToken"),
			dec("daily_volume_eth", "dailyVolumeETH"),
			dec("daily_volume_usd", "dailyVolumeUSD"),
			num("daily_txns", "dailyTxns"),
			dec("total_liquidity_token", "totalLiquidityToken"),
			dec("total_liquidity_eth", "totalLiquidityETH"),
			dec("total_liquidity_usd", "totalLiquidityUSD"),
			dec("price_usd", "priceUSD"),
		},
	},
	{
		Name:        "pairDayDatas",
		Table:       "pair_day_data",
		Pagination:  KeysetNumeric,
		MarkerField: "date",
		MarkerType:  "Int",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			num("date", "date"),
			addr("pair_address", "pairAddress"),
			addr("token0", "token0.id"),
			addr("token1", "token1.id"),
			dec("reserve0", "reserve0"),
			dec("reserve1", "reserve1"),
			dec("total_supply", "totalSupply"),
			dec("reserve_usd", "reserveUSD"),
			dec("daily_volume_token0", "dailyVolumeToken0"),
			dec("daily_volume_token1", "dailyVolumeToken1"),
			dec("daily_volume_usd", "dailyVolumeUSD"),
			num("daily_txns", "dailyTxns"),
		},
	},
	{
		Name:        "pairHourDatas",
		Table:       "pair_hour_data",
		Pagination:  KeysetNumeric,
		MarkerField: "hourStartUnix",
		MarkerType:  "Int",
		Marker:      MarkerTimestamp,
		Fields: []Field{
			num("hour_start_unix", "hourStartUnix"),
			addr("pair", "pair.id"),
			dec("reserve0", "reserve0"),
			dec("reserve1", "reserve1"),
			dec("total_supply", "totalSupply"),
			dec("reserve_usd", "reserveUSD"),
			dec("hourly_volume_token0", "hourlyVolumeToken0"),
			dec("hourly_volume_token1", "hourlyVolumeToken1"),
			dec("hourly_volume_usd", "hourlyVolumeUSD"),
			num("hourly_txns", "hourlyTxns"),
		},
	},
}

// Tables returns the mirrored table definitions of descriptors, one per table name.
func Tables(descriptors []Descriptor) []model.Table {
	seen := make(map[string]struct{})
	var tables []model.Table
	add := func(t model.Table) {
		if _, ok := seen[t.Name]; ok {
			return
		}
		seen[t.Name] = struct{}{}
		tables = append(tables, t)
	}
	for _, d := range descriptors {
		add(d.TableDef())
		for _, e := range d.Embedded {
			add(tableOf(e.Table, e.Fields))
		}
	}
	return tables
}

// Lookup returns the descriptor named name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range Entities {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
